// Package integration contains the catalog sync bounded context.
// It owns the model shared by the supplier and storefront adapters and the
// reconciliation pipeline that joins them.
//
// Key concepts:
//   - SupplierItem / SupplierDetail: records read from the supplier catalog
//   - StorefrontVariant: a sellable variant read from the storefront catalog
//   - PricingConfig: per-shop fee and margin settings used to derive sale prices
//   - ReconciliationRow: one audited line of a sync report
//   - SyncOutcome: the machine-checkable result of one sync run
//
// Design Pattern: Ports & Adapters
//   - Ports (SourceCatalog, SinkCatalog, ReportWriter, CredentialStore, SettingsStore) are defined here
//   - Adapters (implementations) are in the infrastructure layer
package integration
