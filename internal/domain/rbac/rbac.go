// Пакет rbac — роли вызывающих и их отображение из групп IdP.
// Роли независимы: официальный источник регистрирует содержимое,
// фактчекер проверяет; пользователь может иметь обе.
package rbac

import "github.com/bigkaa/goartstore/verify-module/internal/domain/model"

// Роли.
const (
	// RoleOfficial — официальный источник, регистрирует содержимое.
	RoleOfficial = "official"
	// RoleFactcheck — фактчекер, проверяет содержимое.
	RoleFactcheck = "factcheck"
)

// actorLabels — метки ролей для журнала аудита.
var actorLabels = map[string]string{
	RoleOfficial:  model.ActorOfficialAuthority,
	RoleFactcheck: model.ActorFactChecker,
}

// MapGroupsToRoles определяет роли по группам IdP.
// Порядок результата стабилен: official, затем factcheck.
func MapGroupsToRoles(groups []string, officialGroups, factcheckGroups []string) []string {
	officialSet := toSet(officialGroups)
	factcheckSet := toSet(factcheckGroups)

	var isOfficial, isFactcheck bool
	for _, g := range groups {
		if officialSet[g] {
			isOfficial = true
		}
		if factcheckSet[g] {
			isFactcheck = true
		}
	}

	var roles []string
	if isOfficial {
		roles = append(roles, RoleOfficial)
	}
	if isFactcheck {
		roles = append(roles, RoleFactcheck)
	}
	return roles
}

// FilterValidRoles оставляет только известные роли (для realm_access.roles).
func FilterValidRoles(roles []string) []string {
	var out []string
	seen := make(map[string]bool, len(roles))
	for _, r := range roles {
		if IsValidRole(r) && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := actorLabels[role]
	return ok
}

// ActorLabel возвращает метку роли для журнала аудита.
// Для неизвестной роли возвращается сама строка.
func ActorLabel(role string) string {
	if label, ok := actorLabels[role]; ok {
		return label
	}
	return role
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
