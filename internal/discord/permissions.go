package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker restricts channel registration to members holding the
// admin role.
type PermissionChecker struct {
	adminRoleID string
}

// NewPermissionChecker creates a PermissionChecker. An empty role lets
// everyone register channels.
func NewPermissionChecker(adminRoleID string) *PermissionChecker {
	return &PermissionChecker{adminRoleID: adminRoleID}
}

// CanAddChannels reports whether member may register channels. A nil member
// (direct messages) is only allowed when no admin role is configured.
func (p *PermissionChecker) CanAddChannels(member *discordgo.Member) bool {
	if p.adminRoleID == "" {
		return true
	}
	if member == nil {
		return false
	}
	return slices.Contains(member.Roles, p.adminRoleID)
}
