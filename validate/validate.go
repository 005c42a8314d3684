// Package validate checks request payloads and returns the list of
// human-readable violations, empty when the payload is acceptable.
package validate

import (
	"fmt"
	"strings"

	models "commerce-api/model"
)

const MaxPageLimit = 100

// OrderStatus checks that status is one of the known order statuses.
func OrderStatus(status string) []string {
	for _, s := range models.OrderStatuses {
		if string(s) == status {
			return nil
		}
	}
	quoted := make([]string, len(models.OrderStatuses))
	for i, s := range models.OrderStatuses {
		quoted[i] = fmt.Sprintf("'%s'", s)
	}
	return []string{fmt.Sprintf("Invalid enum value. Expected %s, received '%s'", strings.Join(quoted, " | "), status)}
}

// OrderRequest checks the requested items of a new order. Duplicate ids are
// detected over the whole list before anything else is looked at.
func OrderRequest(items []models.OrderRequestItem) []string {
	if len(items) == 0 {
		return []string{"Products array is empty or missing"}
	}
	var errs []string
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[it.ProductID] = struct{}{}
	}
	if len(seen) != len(items) {
		errs = append(errs, "Duplicate product ids found in the products array")
	}
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			errs = append(errs, fmt.Sprintf("Product at position %d is missing its id", i))
			continue
		}
		if it.Count < 1 {
			errs = append(errs, fmt.Sprintf("Product with id %s must be ordered at least once (count_products = %d)", it.ProductID, it.Count))
		}
	}
	return errs
}

// NewProduct checks a product about to be created.
func NewProduct(p models.Product) []string {
	var errs []string
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "Name is required")
	}
	if p.Price.IsNegative() {
		errs = append(errs, "Price must be greater than or equal to 0")
	}
	if p.Count < 0 {
		errs = append(errs, "Count must be greater than or equal to 0")
	}
	return errs
}

// ProductPatch checks the fields present in a product update.
func ProductPatch(p models.ProductPatch) []string {
	var errs []string
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		errs = append(errs, "Name must not be empty")
	}
	if p.Price != nil && p.Price.IsNegative() {
		errs = append(errs, "Price must be greater than or equal to 0")
	}
	if p.Count != nil && *p.Count < 0 {
		errs = append(errs, "Count must be greater than or equal to 0")
	}
	return errs
}

// Page checks pagination parameters.
func Page(page, limit int) []string {
	var errs []string
	if page < 1 {
		errs = append(errs, "Page must be greater than or equal to 1")
	}
	if limit < 1 || limit > MaxPageLimit {
		errs = append(errs, fmt.Sprintf("Limit must be between 1 and %d", MaxPageLimit))
	}
	return errs
}

// ID checks a numeric identifier.
func ID(id int64) []string {
	if id < 1 {
		return []string{"Id must be a positive integer"}
	}
	return nil
}
