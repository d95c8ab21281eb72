package auth

import "github.com/ayush/todo-auth/internal/models"

// CanAccessAll reports whether p may see every user's todos.
func CanAccessAll(p *models.Principal) bool {
	return p != nil && p.HasRole(models.RoleAdmin)
}

// CanModify reports whether p may update or delete a resource owned by ownerID.
func CanModify(p *models.Principal, ownerID int64) bool {
	if p == nil {
		return false
	}
	return CanAccessAll(p) || p.ID == ownerID
}
