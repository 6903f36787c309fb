package homeassistant

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"agiledash/internal/config"
	appLog "agiledash/internal/log"
)

// Condition operators.
const (
	LessThan    = "less_than"
	GreaterThan = "greater_than"
	Equals      = "equals"
	NotEquals   = "not_equals"
)

// StateGetter is implemented by Client.
type StateGetter interface {
	State(ctx context.Context, entityID string) (*EntityState, error)
}

// Result is one poll outcome. The zero value means "no alert, no message".
type Result struct {
	Alert   bool
	Message string
}

// Poller evaluates the configured conditions and message entity.
type Poller struct {
	states StateGetter
	cfg    config.HomeAssistantConfig
}

func NewPoller(states StateGetter, cfg config.HomeAssistantConfig) *Poller {
	return &Poller{states: states, cfg: cfg}
}

// Poll never fails: an unreachable instance or a bad state reads as
// "condition not met" and no message.
func (p *Poller) Poll(ctx context.Context) Result {
	return Result{
		Alert:   p.alert(ctx),
		Message: p.message(ctx),
	}
}

func (p *Poller) alert(ctx context.Context) bool {
	if len(p.cfg.Conditions) == 0 {
		return false
	}
	or := strings.EqualFold(p.cfg.Logic, "OR")

	met := 0
	for _, c := range p.cfg.Conditions {
		ok := p.check(ctx, c)
		desc := c.Description
		if desc == "" {
			desc = c.EntityID
		}
		appLog.Debug("ha condition", "condition", desc, "met", ok)
		if ok {
			met++
		}
	}

	if or {
		return met > 0
	}
	return met == len(p.cfg.Conditions)
}

func (p *Poller) check(ctx context.Context, c config.HACondition) bool {
	st, err := p.states.State(ctx, c.EntityID)
	if err != nil {
		appLog.Warn("ha state fetch failed", "entity", c.EntityID, "err", err)
		return false
	}
	ok, err := Evaluate(c.Condition, st.State, c.Value)
	if err != nil {
		appLog.Warn("ha condition not evaluable", "entity", c.EntityID, "err", err)
		return false
	}
	return ok
}

func (p *Poller) message(ctx context.Context) string {
	if p.cfg.MessageEntity == "" {
		return ""
	}
	st, err := p.states.State(ctx, p.cfg.MessageEntity)
	if err != nil {
		appLog.Warn("ha message fetch failed", "entity", p.cfg.MessageEntity, "err", err)
		return ""
	}
	msg := strings.TrimSpace(st.State)
	switch strings.ToLower(msg) {
	case "", "unknown", "unavailable":
		return ""
	}
	return msg
}

// Evaluate applies op to an entity state. Numeric operators parse both sides
// as floats; equals/not_equals compare strings.
func Evaluate(op, state, value string) (bool, error) {
	switch op {
	case LessThan, GreaterThan:
		cur, err := strconv.ParseFloat(state, 64)
		if err != nil {
			return false, fmt.Errorf("state %q is not numeric", state)
		}
		want, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false, fmt.Errorf("value %q is not numeric", value)
		}
		if op == LessThan {
			return cur < want, nil
		}
		return cur > want, nil
	case Equals:
		return state == value, nil
	case NotEquals:
		return state != value, nil
	default:
		return false, fmt.Errorf("unknown condition %q", op)
	}
}
