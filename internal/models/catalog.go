package models

// ServiceCatalogEntry is reference pricing data for a service type.
type ServiceCatalogEntry struct {
	ServiceType            string  `json:"service_type" yaml:"service_type"`
	Name                   string  `json:"name" yaml:"name"`
	BasePrice              float64 `json:"base_price" yaml:"base_price"`
	PricePerAreaUnit       float64 `json:"price_per_area_unit" yaml:"price_per_area_unit"`
	DefaultDurationMinutes int     `json:"default_duration_minutes" yaml:"default_duration_minutes"`
	Active                 bool    `json:"active" yaml:"active"`
}

// Catalog is the admin-managed reference data loaded at startup.
type Catalog struct {
	Services       []ServiceCatalogEntry `yaml:"services"`
	ChecklistItems []ChecklistItem       `yaml:"checklist_items"`
	Employees      []Employee            `yaml:"employees"`
}
