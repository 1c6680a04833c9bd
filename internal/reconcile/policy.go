package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"rcsync/internal/domain"
)

const (
	PolicyUnresolved = "unresolved"
	PolicySettled    = "settled"
	PolicyFull       = "full"
	PolicyCustom     = "custom"
)

// Policy decides which prior classifications are final. A record whose
// prior status is resolved is carried forward without a fetch.
type Policy struct {
	Name     string
	resolved map[domain.Status]bool
}

func NewPolicy(name string, resolved ...domain.Status) Policy {
	p := Policy{Name: name, resolved: make(map[domain.Status]bool, len(resolved))}
	for _, s := range resolved {
		p.resolved[s] = true
	}
	return p
}

// PolicyByName maps a configured policy name to its resolved set. custom is
// only consulted for the "custom" policy.
func PolicyByName(name string, custom []string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyUnresolved:
		return NewPolicy(PolicyUnresolved, domain.StatusDone), nil
	case PolicySettled:
		return NewPolicy(PolicySettled, domain.StatusDone, domain.StatusNotDone), nil
	case PolicyFull:
		return NewPolicy(PolicyFull), nil
	case PolicyCustom:
		statuses := make([]domain.Status, 0, len(custom))
		for _, raw := range custom {
			st, err := domain.ParseStatus(strings.TrimSpace(raw))
			if err != nil {
				return Policy{}, fmt.Errorf("custom policy: %w", err)
			}
			statuses = append(statuses, st)
		}
		return NewPolicy(PolicyCustom, statuses...), nil
	default:
		return Policy{}, fmt.Errorf("unknown policy %q (want %s, %s, %s or %s)", name, PolicyUnresolved, PolicySettled, PolicyFull, PolicyCustom)
	}
}

func (p Policy) IsResolved(s domain.Status) bool {
	return p.resolved[s]
}

func (p Policy) Resolved() []domain.Status {
	out := make([]domain.Status, 0, len(p.resolved))
	for s := range p.resolved {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p Policy) String() string {
	names := make([]string, 0, len(p.resolved))
	for _, s := range p.Resolved() {
		names = append(names, string(s))
	}
	return fmt.Sprintf("%s{%s}", p.Name, strings.Join(names, ","))
}
