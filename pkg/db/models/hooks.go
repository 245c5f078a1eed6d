package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Owned is implemented by every row that belongs to a single tenant.
type Owned interface {
	OwnerTenantID() uuid.UUID
	AssignTenant(id uuid.UUID)
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (m *Tenant) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *TenantDomain) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *Category) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *Supplier) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *Product) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *ProductVariant) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *Warehouse) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *StockItem) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *StockTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *StockAdjustment) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *StockAlert) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *Order) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *OrderLine) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *OrderFulfillment) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *OrderFulfillmentLine) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *OutboxEvent) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *OutboxDLQ) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

func (m *TenantDomain) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *TenantDomain) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *Category) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *Category) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *Supplier) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *Supplier) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *Product) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *Product) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *ProductVariant) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *ProductVariant) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *Warehouse) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *Warehouse) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *StockItem) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *StockItem) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *StockTransaction) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *StockTransaction) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *StockAdjustment) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *StockAdjustment) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *StockAlert) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *StockAlert) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *Order) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *Order) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *OrderLine) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *OrderLine) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *OrderStatusHistory) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *OrderStatusHistory) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *OrderFulfillment) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *OrderFulfillment) AssignTenant(id uuid.UUID) { m.TenantID = id }

func (m *OrderFulfillmentLine) OwnerTenantID() uuid.UUID  { return m.TenantID }
func (m *OrderFulfillmentLine) AssignTenant(id uuid.UUID) { m.TenantID = id }

// All lists every model in dependency order, for AutoMigrate in tests.
func All() []any {
	return []any{
		&Tenant{},
		&TenantDomain{},
		&Category{},
		&Supplier{},
		&Product{},
		&ProductVariant{},
		&Warehouse{},
		&StockItem{},
		&StockTransaction{},
		&StockAdjustment{},
		&StockAlert{},
		&Order{},
		&OrderLine{},
		&OrderStatusHistory{},
		&OrderFulfillment{},
		&OrderFulfillmentLine{},
		&OutboxEvent{},
		&OutboxDLQ{},
		&OrderSequence{},
	}
}
