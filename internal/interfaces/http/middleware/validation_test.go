package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/shopsync/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settingsInput struct {
	VATPercent          decimal.Decimal `json:"vat_percent" binding:"gte=0"`
	ProfitMarginPercent decimal.Decimal `json:"profit_margin_percent" binding:"gte=0,lt=1000"`
}

func TestSetupValidator(t *testing.T) {
	// Should not panic
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, v)
}

func newSettingsRouter() *gin.Engine {
	SetupValidator()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.PUT("/settings", func(c *gin.Context) {
		var req settingsInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(req))
	})
	return router
}

func TestDecimalValidation(t *testing.T) {
	router := newSettingsRouter()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantFields []string
	}{
		{"valid values", `{"vat_percent": "20", "profit_margin_percent": 30}`, http.StatusOK, nil},
		{"zero is allowed", `{"vat_percent": 0, "profit_margin_percent": 0}`, http.StatusOK, nil},
		{"negative vat", `{"vat_percent": "-1", "profit_margin_percent": 30}`, http.StatusBadRequest, []string{"vat_percent"}},
		{"margin at upper bound", `{"vat_percent": 20, "profit_margin_percent": 1000}`, http.StatusBadRequest, []string{"profit_margin_percent"}},
		{"both invalid", `{"vat_percent": -5, "profit_margin_percent": 2000}`, http.StatusBadRequest, []string{"vat_percent", "profit_margin_percent"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantFields == nil {
				return
			}

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			assert.Equal(t, "Request validation failed", resp.Error.Message)

			var fields []string
			for _, d := range resp.Error.Details {
				fields = append(fields, d.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestHandleValidationError_InvalidJSON(t *testing.T) {
	router := newSettingsRouter()

	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"vat_percent": `))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDKey, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestGetValidationMessage(t *testing.T) {
	type TestStruct struct {
		Required string  `validate:"required"`
		Min      string  `validate:"min=5"`
		OneOf    string  `validate:"oneof=a b c"`
		GTE      int     `validate:"gte=10"`
		LT       float64 `validate:"lt=1"`
	}

	v := validator.New()
	err := v.Struct(TestStruct{Min: "ab", OneOf: "d", GTE: 1, LT: 5})
	require.Error(t, err)

	expected := map[string]string{
		"Required": "This field is required",
		"Min":      "Must be at least 5 characters",
		"OneOf":    "Must be one of: a b c",
		"GTE":      "Must be greater than or equal to 10",
		"LT":       "Must be less than 1",
	}
	for _, e := range err.(validator.ValidationErrors) {
		assert.Equal(t, expected[e.Field()], getValidationMessage(e), e.Field())
	}
}
