package recordstore

import (
	"context"
	"net/http"
)

type authRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string `json:"token"`
	Admin struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"admin"`
}

// AuthWithPassword signs in as an admin and stores the returned token on the
// client for later requests.
func (c *Client) AuthWithPassword(ctx context.Context, identity, password string) (AuthResponse, error) {
	var out AuthResponse
	err := c.doJSON(ctx, "auth with password", http.MethodPost,
		c.endpoint+"/api/admins/auth-with-password",
		authRequest{Identity: identity, Password: password}, &out)
	if err != nil {
		return AuthResponse{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}
