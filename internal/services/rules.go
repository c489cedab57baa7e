package rewards

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultPercentField = "amount"

// Правила по умолчанию, если каталог не содержит правил
func DefaultActionRules() []models.ActionRule {
	return []models.ActionRule{
		{ID: "purchase", Name: "1 XP per dollar spent", Action: "purchase", Percent: 1, Field: "amount", Active: true},
		{ID: "review", Name: "Review", Action: "review", Points: 50, Roll: true, Active: true},
		{ID: "review-long", Name: "Detailed review", Action: "review", Points: 25, Active: true,
			Include: []models.Criteria{{Operator: "AND", Conditions: []models.Condition{{Field: "words", Operator: ">=", Value: 100}}}}},
		{ID: "onboarding", Name: "Onboarding complete", Action: "onboarding_complete", Points: 100, Roll: true, Active: true},
		{ID: "quiz", Name: "Quiz complete", Action: "quiz_complete", Points: 25, Roll: true, Active: true},
		{ID: "quiz-perfect", Name: "Perfect quiz", Action: "quiz_complete", Points: 75, Maximum: true, Active: true,
			Include: []models.Criteria{{Operator: "AND", Conditions: []models.Condition{{Field: "score", Operator: ">=", Value: 100}}}}},
		{ID: "daily-visit", Name: "Daily visit", Action: "daily_visit", Points: 5, Active: true},
		{ID: "referral", Name: "Referral", Action: "referral", Points: 200, Active: true},
		{ID: "document-download", Name: "Document download", Action: "document_download", Points: 10, Active: true},
	}
}

type ActionRuleService struct {
	Rules  []models.ActionRule
	logger *zap.Logger
}

// Только активные правила
func NewActionRuleService(rules []models.ActionRule, logger *zap.Logger) *ActionRuleService {
	active := make([]models.ActionRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	return &ActionRuleService{active, logger}
}

// log
func (s *ActionRuleService) Log(rule models.ActionRule, err error) {
	s.logger.Error("Action rules",
		zap.String("service", "Calculate"),
		zap.String("rule", rule.ID),
		zap.Error(err),
	)
}

// Расчет XP за действие.
// Сумма обычных правил против наибольшего из правил Maximum - побеждает большее.
// roll - начисление победившей группы разыгрывается
func (s *ActionRuleService) Calculate(ctx context.Context, action string, metadata map[string]any) (points int64, roll bool) {
	wg := &sync.WaitGroup{}
	maxCh := make(chan ruleResult, len(s.Rules)) // результаты правил Maximum

	var pointsAll int64 // сумма по обычным правилам
	var rollAll atomic.Bool

	for _, rule := range s.Rules {
		if rule.Action != action {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			default:
				p, ok, err := Relevant(ctx, metadata, rule)
				if err != nil {
					s.Log(rule, err)
					return
				}
				if !ok {
					return
				}
				if rule.Maximum {
					maxCh <- ruleResult{p, rule.Roll}
					return
				}
				atomic.AddInt64(&pointsAll, p)
				if rule.Roll {
					rollAll.Store(true)
				}
			}
		}()
	}
	wg.Wait()
	close(maxCh)

	var best ruleResult
	for v := range maxCh {
		if v.points > best.points {
			best = v
		}
	}
	if pointsAll >= best.points {
		return pointsAll, rollAll.Load() && pointsAll > 0
	}
	return best.points, best.roll
}

type ruleResult struct {
	points int64
	roll   bool
}

// Расчет одного правила
func Relevant(ctx context.Context, metadata map[string]any, rule models.ActionRule) (points int64, ok bool, err error) {
	ok, err = checkRewardCriteria(ctx, rule, metadata)
	if err != nil {
		return 0, false, fmt.Errorf("incorrect rule: %s, %w", rule.ID, err)
	}
	if !ok {
		return 0, false, nil
	}
	if rule.Percent == 0 {
		return rule.Points, true, nil
	}
	field := rule.Field
	if field == "" {
		field = defaultPercentField
	}
	base, found := toFloat64(metadata[field])
	if !found {
		return 0, false, fmt.Errorf("incorrect rule: %s, field %s is not numeric", rule.ID, field)
	}
	if base <= 0 {
		return 0, false, nil
	}
	return int64(math.Ceil(base * float64(rule.Percent) / 100)), true, nil
}

// Расчет наборов Exclude и Include. Пустой Include - правило действует для всех событий действия
func checkRewardCriteria(ctx context.Context, rule models.ActionRule, data map[string]any) (bool, error) {
	var exclude, include atomic.Bool
	include.Store(len(rule.Include) == 0)

	// отмена: если сработало исключающее условие, включающие можно не проверять
	cancelCh := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(cancelCh) }) }

	g, errorctx := errgroup.WithContext(ctx)

	// Исключающие условия
	g.Go(func() error {
		for _, v := range rule.Exclude {
			select {
			case <-errorctx.Done():
				return nil
			default:
				ok, err := checkCriteria(v, data)
				if err != nil {
					cancel()
					return err
				}
				if ok {
					exclude.Store(true) // хоть одно условие сработало - исключаем
					cancel()
					return nil
				}
			}
		}
		return nil
	})

	// Включающие условия - должны сработать все
	g.Go(func() error {
		if len(rule.Include) == 0 {
			return nil
		}
		for _, v := range rule.Include {
			select {
			case <-errorctx.Done():
				return nil
			case <-cancelCh:
				return nil
			default:
				ok, err := checkCriteria(v, data)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
		}
		include.Store(true)
		return nil
	})

	if err := g.Wait(); err != nil {
		return false, err
	}
	return include.Load() && !exclude.Load(), nil
}

// Проверка одного критерия
func checkCriteria(criteria models.Criteria, data map[string]any) (bool, error) {
	switch criteria.Operator {
	case "OR":
		for _, c := range criteria.Conditions {
			d, ok := data[c.Field]
			if !ok {
				continue
			}
			ok, err := checkCondition(c.Value, c.Operator, d)
			if err != nil {
				return false, fmt.Errorf("criteria is wrong: %v, %s, %w", c.Field, c.Operator, err)
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case "AND":
		for _, c := range criteria.Conditions {
			d, ok := data[c.Field]
			if !ok {
				return false, nil
			}
			ok, err := checkCondition(c.Value, c.Operator, d)
			if err != nil {
				return false, fmt.Errorf("criteria is wrong: %v, %s, %w", c.Field, c.Operator, err)
			}
			if !ok {
				return false, nil
			}
		}
		return len(criteria.Conditions) > 0, nil
	}
	return false, fmt.Errorf("unknown criteria operator %q", criteria.Operator)
}

// Проверка условия "field operator cond": string, date, bool, numeric
func checkCondition(cond any, operator string, field any) (bool, error) {
	result, err := compareValues(field, cond)
	if err != nil {
		return false, fmt.Errorf("condition is wrong: %w", err)
	}

	switch operator {
	case "=":
		return result == 0, nil
	case "!=":
		return result != 0, nil
	case ">":
		return result == 1, nil
	case "<":
		return result == -1, nil
	case ">=":
		return result >= 0, nil
	case "<=":
		return result <= 0, nil
	}

	return false, fmt.Errorf("unknown operator %q", operator)
}

// Если равны возвращаем 0, если a больше b возвращаем 1, если меньше -1
// Пробуем: даты, числа, булеан, строки
func compareValues(a, b any) (int, error) {
	// даты
	if sa, ok := a.(string); ok {
		if ta, err := time.Parse(time.DateOnly, sa); err == nil {
			var tb time.Time
			switch v := b.(type) {
			case string:
				tb, err = time.Parse(time.DateOnly, v)
				if err != nil {
					return 0, fmt.Errorf("date parsing error")
				}
			case time.Time:
				tb = v
			default:
				i, ok := toInt64(b) // UNIX time в миллисекундах
				if !ok {
					return 0, fmt.Errorf("date parsing error")
				}
				tb = time.UnixMilli(i)
			}
			return compareTime(ta, tb), nil
		}
	}

	// числа
	na, aok := toFloat64(a)
	nb, bok := toFloat64(b)
	if aok && bok {
		switch {
		case na > nb:
			return 1, nil
		case na < nb:
			return -1, nil
		default:
			return 0, nil
		}
	}

	// bool
	ba, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		if ba == bb {
			return 0, nil
		}
		return -1, nil
	}

	// string
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		switch {
		case sa > sb:
			return 1, nil
		case sa < sb:
			return -1, nil
		default:
			return 0, nil
		}
	}

	return 0, fmt.Errorf("compare is impossible")
}

func compareTime(a, b time.Time) int {
	switch {
	case a.After(b):
		return 1
	case a.Before(b):
		return -1
	}
	return 0
}

// преобразование в float64
func toFloat64(a any) (float64, bool) {
	switch val := a.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

func toInt64(a any) (int64, bool) {
	switch val := a.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		return int64(val), true
	}
	return 0, false
}
