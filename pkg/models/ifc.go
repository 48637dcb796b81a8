package models

// IfcElement is one building element extracted from an IFC source file.
// (ModelVersionID, EntityLabel) is unique within a version; deleting the
// version cascades down to its elements, sets, and entries.
type IfcElement struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	ModelVersionID string `gorm:"uniqueIndex:idx_version_label;not null;size:36" json:"model_version_id"`
	EntityLabel    int    `gorm:"uniqueIndex:idx_version_label;not null" json:"entity_label"`
	GlobalID       string `gorm:"index;size:64" json:"global_id,omitempty"`
	Name           string `gorm:"size:512" json:"name,omitempty"`
	TypeName       string `gorm:"size:255" json:"type_name,omitempty"`
	Description    string `gorm:"size:1024" json:"description,omitempty"`
	ObjectType     string `gorm:"size:255" json:"object_type,omitempty"`
	TypeObjectName string `gorm:"size:255" json:"type_object_name,omitempty"`
	TypeObjectType string `gorm:"size:255" json:"type_object_type,omitempty"`

	PropertySets []IfcPropertySet `gorm:"foreignKey:ElementID;constraint:OnDelete:CASCADE" json:"property_sets,omitempty"`
	QuantitySets []IfcQuantitySet `gorm:"foreignKey:ElementID;constraint:OnDelete:CASCADE" json:"quantity_sets,omitempty"`
}

// TableName returns the table name for IfcElement.
func (IfcElement) TableName() string {
	return "ifc_elements"
}

// IfcPropertySet groups named properties attached to an element, either
// directly or through its type object.
type IfcPropertySet struct {
	ID                string `gorm:"primaryKey;size:36" json:"id"`
	ElementID         string `gorm:"index;not null;size:36" json:"element_id"`
	Name              string `gorm:"not null;size:255" json:"name"`
	GlobalID          string `gorm:"size:64" json:"global_id,omitempty"`
	IsTypePropertySet bool   `gorm:"not null;default:false" json:"is_type_property_set"`

	Properties []IfcProperty `gorm:"foreignKey:PropertySetID;constraint:OnDelete:CASCADE" json:"properties,omitempty"`
}

// TableName returns the table name for IfcPropertySet.
func (IfcPropertySet) TableName() string {
	return "ifc_property_sets"
}

// IfcProperty is a single named value within a property set.
type IfcProperty struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	PropertySetID string `gorm:"index;not null;size:36" json:"property_set_id"`
	Name          string `gorm:"not null;size:255" json:"name"`
	Value         string `gorm:"size:2048" json:"value,omitempty"`
	ValueType     string `gorm:"size:64" json:"value_type,omitempty"`
	Unit          string `gorm:"size:64" json:"unit,omitempty"`
}

// TableName returns the table name for IfcProperty.
func (IfcProperty) TableName() string {
	return "ifc_properties"
}

// IfcQuantitySet groups physical quantities attached to an element.
type IfcQuantitySet struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	ElementID string `gorm:"index;not null;size:36" json:"element_id"`
	Name      string `gorm:"not null;size:255" json:"name"`
	GlobalID  string `gorm:"size:64" json:"global_id,omitempty"`

	Quantities []IfcQuantity `gorm:"foreignKey:QuantitySetID;constraint:OnDelete:CASCADE" json:"quantities,omitempty"`
}

// TableName returns the table name for IfcQuantitySet.
func (IfcQuantitySet) TableName() string {
	return "ifc_quantity_sets"
}

// IfcQuantity is a single measured value within a quantity set.
type IfcQuantity struct {
	ID            string  `gorm:"primaryKey;size:36" json:"id"`
	QuantitySetID string  `gorm:"index;not null;size:36" json:"quantity_set_id"`
	Name          string  `gorm:"not null;size:255" json:"name"`
	Value         float64 `json:"value"`
	ValueType     string  `gorm:"size:64" json:"value_type,omitempty"`
	Unit          string  `gorm:"size:64" json:"unit,omitempty"`
}

// TableName returns the table name for IfcQuantity.
func (IfcQuantity) TableName() string {
	return "ifc_quantities"
}
