package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bimhub/bimhub/pkg/models"
)

// insertBatchSize bounds the row count per INSERT during bulk element
// loading. SQLite's default variable limit is the binding constraint.
const insertBatchSize = 100

// ============================================
// IFC ELEMENT OPERATIONS
// ============================================

// ReplaceIfcElements stores the extracted elements for a model version,
// replacing anything already there. Duplicate entity labels in the input
// keep the last occurrence. IDs are assigned here so the whole graph can
// be batch-inserted without round trips.
func (s *GORMStore) ReplaceIfcElements(ctx context.Context, modelVersionID string, elements []*models.IfcElement) error {
	deduped := dedupeByLabel(elements)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteElementsForVersions(tx, []string{modelVersionID}); err != nil {
			return err
		}
		if len(deduped) == 0 {
			return nil
		}

		var (
			propertySets []*models.IfcPropertySet
			properties   []*models.IfcProperty
			quantitySets []*models.IfcQuantitySet
			quantities   []*models.IfcQuantity
		)
		for _, element := range deduped {
			element.ModelVersionID = modelVersionID
			if element.ID == "" {
				element.ID = uuid.New().String()
			}
			for i := range element.PropertySets {
				set := &element.PropertySets[i]
				set.ElementID = element.ID
				if set.ID == "" {
					set.ID = uuid.New().String()
				}
				propertySets = append(propertySets, set)
				for j := range set.Properties {
					prop := &set.Properties[j]
					prop.PropertySetID = set.ID
					if prop.ID == "" {
						prop.ID = uuid.New().String()
					}
					properties = append(properties, prop)
				}
				set.Properties = nil
			}
			element.PropertySets = nil
			for i := range element.QuantitySets {
				set := &element.QuantitySets[i]
				set.ElementID = element.ID
				if set.ID == "" {
					set.ID = uuid.New().String()
				}
				quantitySets = append(quantitySets, set)
				for j := range set.Quantities {
					qty := &set.Quantities[j]
					qty.QuantitySetID = set.ID
					if qty.ID == "" {
						qty.ID = uuid.New().String()
					}
					quantities = append(quantities, qty)
				}
				set.Quantities = nil
			}
			element.QuantitySets = nil
		}

		if err := tx.CreateInBatches(deduped, insertBatchSize).Error; err != nil {
			return err
		}
		if len(propertySets) > 0 {
			if err := tx.CreateInBatches(propertySets, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(properties) > 0 {
			if err := tx.CreateInBatches(properties, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(quantitySets) > 0 {
			if err := tx.CreateInBatches(quantitySets, insertBatchSize).Error; err != nil {
				return err
			}
		}
		if len(quantities) > 0 {
			if err := tx.CreateInBatches(quantities, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// dedupeByLabel keeps the last occurrence of each entity label, preserving
// the order of first appearance.
func dedupeByLabel(elements []*models.IfcElement) []*models.IfcElement {
	index := make(map[int]int, len(elements))
	deduped := make([]*models.IfcElement, 0, len(elements))
	for _, element := range elements {
		if pos, seen := index[element.EntityLabel]; seen {
			deduped[pos] = element
			continue
		}
		index[element.EntityLabel] = len(deduped)
		deduped = append(deduped, element)
	}
	return deduped
}

// GetIfcElementByLabel returns one element with its property and quantity
// sets fully loaded.
func (s *GORMStore) GetIfcElementByLabel(ctx context.Context, modelVersionID string, entityLabel int) (*models.IfcElement, error) {
	var element models.IfcElement
	err := s.db.WithContext(ctx).
		Preload("PropertySets.Properties").
		Preload("QuantitySets.Quantities").
		Where("model_version_id = ? AND entity_label = ?", modelVersionID, entityLabel).
		First(&element).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrElementNotFound)
	}
	return &element, nil
}

// GetIfcElementByGlobalID resolves an element by its IFC GlobalId instead
// of the entity label.
func (s *GORMStore) GetIfcElementByGlobalID(ctx context.Context, modelVersionID, globalID string) (*models.IfcElement, error) {
	var element models.IfcElement
	err := s.db.WithContext(ctx).
		Preload("PropertySets.Properties").
		Preload("QuantitySets.Quantities").
		Where("model_version_id = ? AND global_id = ?", modelVersionID, globalID).
		First(&element).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrElementNotFound)
	}
	return &element, nil
}

// ListIfcElements pages through the elements of a version ordered by
// entity label. Pass an empty typeName to skip type filtering. Property
// and quantity sets are loaded for the returned page only.
func (s *GORMStore) ListIfcElements(ctx context.Context, modelVersionID, typeName string, offset, limit int) ([]*models.IfcElement, int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.IfcElement{}).
		Where("model_version_id = ?", modelVersionID)
	if typeName != "" {
		q = q.Where("type_name = ?", typeName)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*models.IfcElement
	if err := q.
		Preload("PropertySets.Properties").
		Preload("QuantitySets.Quantities").
		Order("entity_label ASC").
		Offset(offset).Limit(limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (s *GORMStore) CountIfcElements(ctx context.Context, modelVersionID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.IfcElement{}).
		Where("model_version_id = ?", modelVersionID).
		Count(&count).Error
	return count, err
}

// deleteElementsForVersions removes the element graphs of the given
// versions bottom-up so no orphan rows survive on backends without
// foreign key enforcement.
func deleteElementsForVersions(tx *gorm.DB, versionIDs []string) error {
	if len(versionIDs) == 0 {
		return nil
	}
	elementIDs := tx.Model(&models.IfcElement{}).
		Select("id").
		Where("model_version_id IN ?", versionIDs)

	propertySetIDs := tx.Model(&models.IfcPropertySet{}).
		Select("id").
		Where("element_id IN (?)", elementIDs)
	if err := tx.Where("property_set_id IN (?)", propertySetIDs).
		Delete(&models.IfcProperty{}).Error; err != nil {
		return err
	}
	if err := tx.Where("element_id IN (?)", elementIDs).
		Delete(&models.IfcPropertySet{}).Error; err != nil {
		return err
	}

	quantitySetIDs := tx.Model(&models.IfcQuantitySet{}).
		Select("id").
		Where("element_id IN (?)", elementIDs)
	if err := tx.Where("quantity_set_id IN (?)", quantitySetIDs).
		Delete(&models.IfcQuantity{}).Error; err != nil {
		return err
	}
	if err := tx.Where("element_id IN (?)", elementIDs).
		Delete(&models.IfcQuantitySet{}).Error; err != nil {
		return err
	}

	return tx.Where("model_version_id IN ?", versionIDs).
		Delete(&models.IfcElement{}).Error
}
