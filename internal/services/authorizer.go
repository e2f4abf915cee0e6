package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
)

type Role string

const (
	RoleDonor  Role = "donor"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
	RoleNGO    Role = "ngo"
)

func ParseRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSystem:
		return RoleSystem
	case RoleNGO:
		return RoleNGO
	case RoleDonor, "":
		return RoleDonor
	default:
		return Role(strings.ToLower(strings.TrimSpace(raw)))
	}
}

// Actor is the authenticated caller requesting a ledger change.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin || a.Role == RoleSystem }

type TransitionRule struct {
	From                 ledger.DonationStatus `yaml:"from"`
	To                   ledger.DonationStatus `yaml:"to"`
	RequireTransactionID bool                  `yaml:"require_transaction_id"`
}

type RolePolicy struct {
	// OwnOnly restricts the role to donations it made.
	OwnOnly bool `yaml:"own_only"`
	// All grants every table transition.
	All         bool             `yaml:"all"`
	Transitions []TransitionRule `yaml:"transitions"`
}

type TransitionPolicy struct {
	Roles map[Role]RolePolicy `yaml:"roles"`
}

func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{Roles: map[Role]RolePolicy{
		RoleDonor: {
			OwnOnly: true,
			Transitions: []TransitionRule{
				{From: ledger.StatusPending, To: ledger.StatusCompleted, RequireTransactionID: true},
				{From: ledger.StatusPending, To: ledger.StatusFailed},
			},
		},
		RoleAdmin:  {All: true},
		RoleSystem: {All: true},
		RoleNGO:    {},
	}}
}

// LoadTransitionPolicy reads a YAML policy. An empty path yields the default policy.
func LoadTransitionPolicy(path string) (TransitionPolicy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultTransitionPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return TransitionPolicy{}, fmt.Errorf("read transition policy: %w", err)
	}
	return ParseTransitionPolicy(raw)
}

func ParseTransitionPolicy(raw []byte) (TransitionPolicy, error) {
	var p TransitionPolicy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return TransitionPolicy{}, fmt.Errorf("parse transition policy: %w", err)
	}
	if len(p.Roles) == 0 {
		return TransitionPolicy{}, fmt.Errorf("transition policy defines no roles")
	}
	normalized := make(map[Role]RolePolicy, len(p.Roles))
	for role, rp := range p.Roles {
		for i, rule := range rp.Transitions {
			from, ok := ledger.ParseStatus(string(rule.From))
			if !ok {
				return TransitionPolicy{}, fmt.Errorf("role %s: unknown from status %q", role, rule.From)
			}
			to, ok := ledger.ParseStatus(string(rule.To))
			if !ok {
				return TransitionPolicy{}, fmt.Errorf("role %s: unknown to status %q", role, rule.To)
			}
			if !ledger.Allowed(from, to) {
				return TransitionPolicy{}, fmt.Errorf("role %s: %s -> %s is not a ledger transition", role, from, to)
			}
			rp.Transitions[i].From = from
			rp.Transitions[i].To = to
		}
		normalized[ParseRole(string(role))] = rp
	}
	p.Roles = normalized
	return p, nil
}

type TransitionAuthorizer interface {
	Authorize(actor Actor, d *ledger.Donation, to ledger.DonationStatus, transactionID string) error
}

type policyAuthorizer struct {
	policy TransitionPolicy
}

func NewTransitionAuthorizer(policy TransitionPolicy) TransitionAuthorizer {
	if len(policy.Roles) == 0 {
		policy = DefaultTransitionPolicy()
	}
	return &policyAuthorizer{policy: policy}
}

const authorizeOp = "Ledger.Donation.Authorize"

func forbidden(format string, args ...any) error {
	return domainagg.NewError(domainagg.CodeForbidden, authorizeOp, fmt.Sprintf(format, args...), nil)
}

// Authorize judges only table transitions and COMPLETED replays. Any other request
// is left to the transition engine, which rejects it as invalid.
func (a *policyAuthorizer) Authorize(actor Actor, d *ledger.Donation, to ledger.DonationStatus, transactionID string) error {
	if d == nil {
		return forbidden("donation missing")
	}
	rp, ok := a.policy.Roles[actor.Role]
	if !ok || (!rp.All && len(rp.Transitions) == 0) {
		return forbidden("role %q may not change donation status", actor.Role)
	}
	if rp.OwnOnly && d.DonorID != actor.ID {
		return forbidden("donation belongs to another donor")
	}
	if rp.All {
		return nil
	}

	replay := d.Status == to
	if !replay && !ledger.Allowed(d.Status, to) {
		return nil
	}
	txID := strings.TrimSpace(transactionID)
	for _, rule := range rp.Transitions {
		if rule.To != to || (!replay && rule.From != d.Status) {
			continue
		}
		if rule.RequireTransactionID && txID == "" {
			return forbidden("%s -> %s requires a transaction_id", rule.From, rule.To)
		}
		return nil
	}
	return forbidden("role %q may not move a donation from %s to %s", actor.Role, d.Status, to)
}
