package accesscontrol

import (
	"sundayschool-points/pkg/config"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("accesscontrol", fx.Provide(New))

const (
	RoleStudent      = "student"
	RoleTeacher      = "teacher"
	RoleChurchAdmin  = "church_admin"
	RoleDioceseAdmin = "diocese_admin"
	RoleSystem       = "system"
)

const (
	ActRead  = "read"
	ActWrite = "write"
	ActApply = "apply"
)

const (
	ObjBalance     = "balance"
	ObjLeaderboard = "leaderboard"
	ObjConfig      = "config"
	ObjConfigs     = "configs"
	ObjAudit       = "audit"
)

// EventObject is the policy object guarding one transaction type.
func EventObject(transactionType string) string {
	return "points:" + transactionType
}

const defaultModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && r.act == p.act
`

var defaultPolicies = [][]string{
	{RoleStudent, ObjBalance, ActRead},
	{RoleStudent, ObjLeaderboard, ActRead},

	{RoleTeacher, EventObject("attendance"), ActApply},
	{RoleTeacher, EventObject("trip_participation"), ActApply},
	{RoleTeacher, EventObject("activity_completion"), ActApply},
	{RoleTeacher, EventObject("activity_revocation"), ActApply},
	{RoleTeacher, EventObject("teacher_adjustment"), ActApply},

	{RoleChurchAdmin, EventObject("admin_adjustment"), ActApply},
	{RoleChurchAdmin, EventObject("store_order_*"), ActApply},
	{RoleChurchAdmin, ObjConfig, ActRead},
	{RoleChurchAdmin, ObjConfig, ActWrite},
	{RoleChurchAdmin, ObjAudit, ActRead},

	{RoleDioceseAdmin, ObjConfigs, ActRead},

	{RoleSystem, EventObject("*"), ActApply},
	{RoleSystem, ObjBalance, ActRead},
	{RoleSystem, ObjConfig, ActRead},
}

var defaultGroupings = [][]string{
	{RoleTeacher, RoleStudent},
	{RoleChurchAdmin, RoleTeacher},
	{RoleDioceseAdmin, RoleChurchAdmin},
}

// New loads ACCESS_CONTROL.MODEL/POLICY files when both are set and the
// built-in role table otherwise.
func New(cfg *config.Config) (*casbin.Enforcer, error) {
	ac := cfg.AccessControl
	if ac.Model != "" && ac.Policy != "" {
		zap.L().Info("loading access control policy", zap.String("model", ac.Model), zap.String("policy", ac.Policy))
		return casbin.NewEnforcer(ac.Model, ac.Policy)
	}
	return NewDefault()
}

func NewDefault() (*casbin.Enforcer, error) {
	m, err := model.NewModelFromString(defaultModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}

	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, err
	}
	if _, err := e.AddGroupingPolicies(defaultGroupings); err != nil {
		return nil, err
	}

	return e, nil
}
