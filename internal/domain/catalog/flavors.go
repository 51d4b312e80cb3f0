package catalog

// KnownFlavors is the curated list of flavor phrases recognized in supplier names.
// Order does not matter; the parser sorts by length so longer phrases win.
var KnownFlavors = []string{
	// Chocolate family
	"Chocolate",
	"Double Chocolate",
	"Milk Chocolate",
	"White Chocolate",
	"Dark Chocolate",
	"Chocolate Mint",
	"Mint Chocolate",
	"Chocolate Hazelnut",
	"Chocolate Peanut Butter",
	"Chocolate Coconut",
	"Chocolate Brownie",
	"Chocolate Orange",

	// Sweet / dessert
	"Vanilla",
	"Vanilla Ice Cream",
	"French Vanilla",
	"Caramel",
	"Salted Caramel",
	"Toffee",
	"Butterscotch",
	"Cookies & Cream",
	"Cookies and Cream",
	"Peanut Butter",
	"Hazelnut",
	"Pistachio",
	"Cinnamon",
	"Cinnamon Roll",
	"Banoffee",
	"Birthday Cake",
	"Cheesecake",
	"Strawberry Cheesecake",
	"Bubblegum",
	"Marshmallow",
	"Rum Raisin",
	"Tiramisu",
	"Honey",

	// Coffee
	"Coffee",
	"Mocha",
	"Cappuccino",
	"Latte",
	"Iced Coffee",

	// Fruit
	"Strawberry",
	"Strawberry Banana",
	"Strawberry Kiwi",
	"Banana",
	"Raspberry",
	"Blue Raspberry",
	"Blueberry",
	"Cherry",
	"Black Cherry",
	"Cranberry",
	"Blackcurrant",
	"Mixed Berry",
	"Wild Berry",
	"Forest Fruits",
	"Red Fruits",
	"Mango",
	"Mango Passion Fruit",
	"Passion Fruit",
	"Pineapple",
	"Coconut",
	"Pina Colada",
	"Peach",
	"Peach Ice Tea",
	"Apricot",
	"Apple",
	"Green Apple",
	"Sour Apple",
	"Pear",
	"Grape",
	"Watermelon",
	"Melon",
	"Kiwi",
	"Lemon",
	"Lime",
	"Lemon Lime",
	"Orange",
	"Blood Orange",
	"Grapefruit",
	"Pink Grapefruit",
	"Pomegranate",
	"Tropical",
	"Tropical Punch",
	"Fruit Punch",
	"Pink Lemonade",
	"Lemonade",
	"Cherry Lime",
	"Cola",
	"Cherry Cola",
	"Ice Tea",
	"Iced Tea",
	"Lemon Ice Tea",
	"Mojito",
	"Unicorn",
}

// NoFlavorTokens are recognized like flavors but mean the product has none.
// They are removed from the item name and reported as an absent flavor.
var NoFlavorTokens = []string{
	"Unflavored",
	"Unflavoured",
	"Neutral",
	"Natural",
	"Flavourless",
	"Flavorless",
}
