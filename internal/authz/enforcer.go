// Package authz decides which role may perform which action on which resource.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"letscrap-backend/internal/models"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

const (
	ResourceScrapRequest = "scrap_request"
	ResourceBill         = "bill"
	ResourceUser         = "user"
	ResourceAuditLog     = "audit_log"
)

const (
	ActionCreate   = "create"
	ActionRead     = "read"
	ActionAccept   = "accept"
	ActionReject   = "reject"
	ActionPickup   = "pickup"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
	ActionRate     = "rate"
	ActionGenerate = "generate"
	ActionDelete   = "delete"
)

type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds an enforcer from the embedded model and policy.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authz model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	if err := loadPolicy(e, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := e.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := e.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Allowed reports whether role may perform action on resource. Errors count as denial.
func (e *Enforcer) Allowed(role models.UserRole, resource, action string) bool {
	ok, err := e.enforcer.Enforce(string(role), resource, action)
	return err == nil && ok
}
