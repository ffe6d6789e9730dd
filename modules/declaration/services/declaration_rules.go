package services

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/vhgminh/bhxh-portal/modules/declaration/domain/types"
)

// IntakeRule is a CEL predicate over a participant context. A rule passes
// when its expression evaluates to true.
type IntakeRule struct {
	ID      string
	Expr    string
	Message string
}

// DefaultIntakeRules are the statutory form checks the intake UI used to
// scatter across field validators.
func DefaultIntakeRules() []IntakeRule {
	return []IntakeRule{
		{
			ID:      "full_name_required",
			Expr:    `ctx.full_name != ''`,
			Message: "participant name is required",
		},
		{
			ID:      "household_order_known",
			Expr:    `ctx.household_order in ['1', '2', '3', '4', '5+']`,
			Message: "household order must be 1-4 or 5+",
		},
		{
			ID:      "term_allowed",
			Expr:    `int(ctx.months_paid) in [3, 6, 12]`,
			Message: "household BHYT is sold in 3, 6 or 12 month terms",
		},
		{
			ID:      "insurance_code_format",
			Expr:    `ctx.insurance_code == '' || ctx.insurance_code.matches('^[0-9]{10}$')`,
			Message: "insurance code must be 10 digits when present",
		},
	}
}

var newIntakeCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

// RuleEngine compiles intake rules once and caches the programs.
type RuleEngine struct {
	rules []IntakeRule

	envOnce sync.Once
	env     *cel.Env
	envErr  error

	programs sync.Map // rule ID -> cel.Program
}

func NewRuleEngine(rules []IntakeRule) *RuleEngine {
	return &RuleEngine{rules: rules}
}

func (e *RuleEngine) lazyEnv() (*cel.Env, error) {
	e.envOnce.Do(func() {
		e.env, e.envErr = newIntakeCELEnv()
	})
	return e.env, e.envErr
}

func (e *RuleEngine) program(rule IntakeRule) (cel.Program, error) {
	if cached, ok := e.programs.Load(rule.ID); ok {
		return cached.(cel.Program), nil
	}

	env, err := e.lazyEnv()
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(rule.Expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	e.programs.Store(rule.ID, prg)
	return prg, nil
}

func participantContext(p types.Participant) map[string]string {
	hasOldCard := "false"
	if !p.OldCardExpiry.IsZero() {
		hasOldCard = "true"
	}
	return map[string]string{
		"full_name":       p.FullName,
		"insurance_code":  p.InsuranceCode,
		"household_order": string(p.HouseholdOrder),
		"months_paid":     strconv.Itoa(p.MonthsPaid),
		"has_old_card":    hasOldCard,
	}
}

// Validate runs every rule against every participant and collects the
// failures. A rule that cannot be evaluated counts as failed rather than
// silently passing.
func (e *RuleEngine) Validate(participants []types.Participant) []types.RuleViolation {
	var out []types.RuleViolation
	for i, p := range participants {
		evalCtx := participantContext(p)
		for _, rule := range e.rules {
			prg, err := e.program(rule)
			if err != nil {
				out = append(out, types.RuleViolation{ParticipantIndex: i, RuleID: rule.ID, Message: err.Error()})
				continue
			}
			val, _, err := prg.Eval(map[string]any{"ctx": evalCtx})
			if err != nil {
				out = append(out, types.RuleViolation{ParticipantIndex: i, RuleID: rule.ID, Message: err.Error()})
				continue
			}
			if passed, ok := val.Value().(bool); !ok || !passed {
				out = append(out, types.RuleViolation{ParticipantIndex: i, RuleID: rule.ID, Message: rule.Message})
			}
		}
	}
	return out
}
