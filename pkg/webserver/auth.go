package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/wata-nana/Hiraizumi-app/pkg/db"
	"github.com/wata-nana/Hiraizumi-app/pkg/utils"
)

// User-facing failure messages. Provider internals never reach the
// client; details go to the server log only.
const (
	flashAuthFailed  = "Google認証に失敗しました。再度ログインしてください。"
	flashSystemError = "システムエラーが発生しました。再度ログインしてください。"
	flashNoClaims    = "ユーザー情報を取得できませんでした。Googleアカウントを確認してください。"
	flashBadState    = "ログインセッションが無効です。再度ログインしてください。"
)

// GoogleClaims are the identity attributes extracted from the userinfo
// endpoint after a successful token exchange.
type GoogleClaims struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// handleLogin starts the Google OIDC flow. Already-authenticated
// sessions go straight to the map page.
func (s *Server) handleLogin(c *gin.Context) {
	if _, ok := s.sessionUserID(c); ok {
		c.Redirect(http.StatusFound, "/map")
		return
	}

	state, err := utils.NewTokenGenerator().GenerateSecureToken(16)
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate OAuth2 state")
		s.failLogin(c, flashSystemError)
		return
	}

	session := sessions.Default(c)
	session.Set(sessionStateKey, state)
	if err := session.Save(); err != nil {
		s.logger.WithError(err).Error("Failed to save OAuth2 state to session")
		s.failLogin(c, flashSystemError)
		return
	}

	google := s.config.OAuth.Google
	authURL := fmt.Sprintf("%s?client_id=%s&redirect_uri=%s&scope=%s&response_type=code&state=%s",
		google.AuthURL,
		url.QueryEscape(google.ClientID),
		url.QueryEscape(google.RedirectURL),
		url.QueryEscape(strings.Join(google.Scopes, " ")),
		url.QueryEscape(state),
	)

	s.logger.LogAuth(0, "", "login_initiated", true)
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// handleCallback finishes the OIDC flow: state check, code exchange,
// claims fetch, then a sub-keyed upsert of the local user record. Every
// failure path flashes a message and redirects to the landing page.
func (s *Server) handleCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	errorParam := c.Query("error")

	if errorParam != "" {
		s.logger.LogAuth(0, "", "callback_error", false)
		s.logger.WithField("provider_error", errorParam).Warn("OAuth error during Google callback")
		s.failLogin(c, flashAuthFailed)
		return
	}

	session := sessions.Default(c)
	sessionState := session.Get(sessionStateKey)
	session.Delete(sessionStateKey)
	if err := session.Save(); err != nil {
		s.logger.WithError(err).Error("Failed to clear OAuth2 state from session")
	}

	// A missing or malformed stored state counts as a mismatch.
	storedState, _ := sessionState.(string)
	if storedState == "" || storedState != state || state == "" {
		s.logger.LogSecurity("oauth_state_mismatch", 0, c.ClientIP(), map[string]interface{}{
			"received_state": state,
		})
		s.failLogin(c, flashBadState)
		return
	}

	accessToken, err := s.exchangeCodeForToken(code)
	if err != nil {
		s.logger.WithError(err).Error("Failed to exchange code for token")
		s.failLogin(c, flashAuthFailed)
		return
	}

	claims, err := s.getUserClaims(accessToken)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get user info")
		s.failLogin(c, flashAuthFailed)
		return
	}

	if claims.Sub == "" || claims.Email == "" {
		s.logger.Warn("Google userinfo response missing required claims")
		s.failLogin(c, flashNoClaims)
		return
	}

	repo := db.NewRepository(s.db)
	user, err := repo.UpsertUserFromClaims(claims.Sub, claims.Email, claims.Name, claims.Picture)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create or update user")
		s.failLogin(c, flashSystemError)
		return
	}

	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		s.logger.WithError(err).Error("Failed to save login session")
		s.failLogin(c, flashSystemError)
		return
	}

	s.logger.LogAuth(user.ID, user.Email, "login_success", true)
	c.Redirect(http.StatusFound, "/map")
}

// handleLogout clears the login session and returns to the landing page.
func (s *Server) handleLogout(c *gin.Context) {
	session := sessions.Default(c)
	if id, ok := s.sessionUserID(c); ok {
		s.logger.LogAuth(id, "", "logout", true)
	}

	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/")
}

// handleToken mints a bearer API token for the logged-in session, for
// clients that talk to the JSON API without cookies.
func (s *Server) handleToken(c *gin.Context) {
	user, err := s.getCurrentUser(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse("Unauthorized"))
		return
	}

	token, err := s.jwtManager.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate API token")
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse("Failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse(map[string]interface{}{
		"token": token,
	}, "Token generated"))
}

// failLogin stores a flash message in the session and redirects to the
// landing page, which pops it via /api/me.
func (s *Server) failLogin(c *gin.Context, message string) {
	session := sessions.Default(c)
	session.Set(sessionFlashKey, message)
	if err := session.Save(); err != nil {
		s.logger.WithError(err).Error("Failed to save flash message to session")
	}
	c.Redirect(http.StatusFound, "/")
}

// exchangeCodeForToken exchanges the authorization code for an access token
func (s *Server) exchangeCodeForToken(code string) (string, error) {
	google := s.config.OAuth.Google

	data := url.Values{}
	data.Set("client_id", google.ClientID)
	data.Set("client_secret", google.ClientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", google.RedirectURL)

	req, err := http.NewRequest("POST", google.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status: %d", resp.StatusCode)
	}

	var tokenResponse map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", err
	}

	accessToken, ok := tokenResponse["access_token"].(string)
	if !ok {
		return "", fmt.Errorf("access token not found in response")
	}

	return accessToken, nil
}

// getUserClaims fetches identity claims from the userinfo endpoint
func (s *Server) getUserClaims(accessToken string) (*GoogleClaims, error) {
	req, err := http.NewRequest("GET", s.config.OAuth.Google.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info request failed with status: %d", resp.StatusCode)
	}

	var claims GoogleClaims
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, err
	}

	return &claims, nil
}
