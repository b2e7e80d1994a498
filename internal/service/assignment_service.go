package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wrenchworks/cmms-api/internal/dto"
	"github.com/wrenchworks/cmms-api/internal/models"
	appErrors "github.com/wrenchworks/cmms-api/pkg/errors"
)

const activeRulesCacheKey = "assignment:rules:active"

type assignmentRuleStore interface {
	ListActive(ctx context.Context) ([]models.AssignmentRule, error)
	List(ctx context.Context) ([]models.AssignmentRule, error)
	GetByID(ctx context.Context, id string) (*models.AssignmentRule, error)
	Create(ctx context.Context, rule *models.AssignmentRule) error
	Update(ctx context.Context, rule *models.AssignmentRule) error
	Delete(ctx context.Context, id string) error
}

// AssignmentService evaluates routing rules against work order attributes and
// owns rule CRUD. Matching is a pure query; callers decide whether to apply
// the result.
type AssignmentService struct {
	rules     assignmentRuleStore
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService wires the service. cache may be nil, which disables
// rule caching.
func NewAssignmentService(rules assignmentRuleStore, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AssignmentService{
		rules:     rules,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validator.New(),
		logger:    logger,
	}
}

// Match returns the assignee of the single best-matching active rule, or nil
// when no rule matches. Rules are evaluated in priority order (ascending,
// ties by id ascending) so repeated calls with identical inputs always pick
// the same rule. A rule-load failure propagates; it is never folded into
// "no match".
func (s *AssignmentService) Match(ctx context.Context, attrs models.WorkOrderAttributes) (*string, error) {
	rules, err := s.loadActiveRules(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment rules")
	}
	for i := range rules {
		if rules[i].Matches(attrs) {
			assignee := rules[i].AssignToID
			return &assignee, nil
		}
	}
	return nil, nil
}

func (s *AssignmentService) loadActiveRules(ctx context.Context) ([]models.AssignmentRule, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, activeRulesCacheKey).Bytes()
		if err == nil {
			var cached []models.AssignmentRule
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("assignment rule cache read failed", zap.Error(err))
		}
	}

	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(rules); err == nil {
			if err := s.cache.Set(ctx, activeRulesCacheKey, raw, s.cacheTTL).Err(); err != nil {
				s.logger.Warn("assignment rule cache write failed", zap.Error(err))
			}
		}
	}
	return rules, nil
}

func (s *AssignmentService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, activeRulesCacheKey).Err(); err != nil {
		s.logger.Warn("assignment rule cache invalidation failed", zap.Error(err))
	}
}

// ListRules returns all rules in match order.
func (s *AssignmentService) ListRules(ctx context.Context) ([]models.AssignmentRule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignment rules")
	}
	return rules, nil
}

// CreateRule validates and stores a new rule.
func (s *AssignmentService) CreateRule(ctx context.Context, req dto.CreateAssignmentRuleRequest) (*models.AssignmentRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment rule")
	}
	for _, p := range req.Priorities {
		if !models.ValidPriority(models.WorkOrderPriority(p)) {
			return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown priority %q", p)
		}
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	rule := &models.AssignmentRule{
		Name:       req.Name,
		Priority:   req.Priority,
		IsActive:   isActive,
		AssetTypes: pq.StringArray(req.AssetTypes),
		Categories: pq.StringArray(req.Categories),
		Locations:  pq.StringArray(req.Locations),
		Priorities: pq.StringArray(req.Priorities),
		AssignToID: req.AssignToID,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment rule")
	}
	s.invalidateCache(ctx)
	return rule, nil
}

// UpdateRule applies partial changes to an existing rule.
func (s *AssignmentService) UpdateRule(ctx context.Context, id string, req dto.UpdateAssignmentRuleRequest) (*models.AssignmentRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment rule")
	}
	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.AssetTypes != nil {
		rule.AssetTypes = pq.StringArray(*req.AssetTypes)
	}
	if req.Categories != nil {
		rule.Categories = pq.StringArray(*req.Categories)
	}
	if req.Locations != nil {
		rule.Locations = pq.StringArray(*req.Locations)
	}
	if req.Priorities != nil {
		for _, p := range *req.Priorities {
			if !models.ValidPriority(models.WorkOrderPriority(p)) {
				return nil, appErrors.Clonef(appErrors.ErrValidation, "unknown priority %q", p)
			}
		}
		rule.Priorities = pq.StringArray(*req.Priorities)
	}
	if req.AssignToID != nil {
		rule.AssignToID = *req.AssignToID
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment rule")
	}
	s.invalidateCache(ctx)
	return rule, nil
}

// DeleteRule removes a rule.
func (s *AssignmentService) DeleteRule(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment rule")
	}
	s.invalidateCache(ctx)
	return nil
}
