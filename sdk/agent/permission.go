package agent

import (
	"context"
	"fmt"
	"net/http"
)

type permissionReplyRequest struct {
	Response string `json:"response"`
}

// RespondToPermission replies to a pending permission request. Response must
// be one of PermissionAllow, PermissionReject or PermissionAlways.
func (c *Client) RespondToPermission(ctx context.Context, sessionID, permissionID, response string) error {
	switch response {
	case PermissionAllow, PermissionReject, PermissionAlways:
	default:
		return fmt.Errorf("invalid permission response %q", response)
	}

	path := fmt.Sprintf("/session/%s/permissions/%s", sessionID, permissionID)
	var result bool
	return c.doRequest(ctx, http.MethodPost, path, &permissionReplyRequest{Response: response}, &result)
}
