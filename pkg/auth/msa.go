package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/browser"
)

// The public Minecraft launcher client id works for third-party tooling.
const msaClientID = "00000000402b5328"

const (
	msAuthorizeURL = "https://login.live.com/oauth20_authorize.srf"
	msTokenURL     = "https://login.live.com/oauth20_token.srf"
	xblURL         = "https://user.auth.xboxlive.com/user/authenticate"
	xstsURL        = "https://xsts.auth.xboxlive.com/xsts/authorize"
	mcLoginURL     = "https://api.minecraftservices.com/authentication/login_with_xbox"
	mcProfileURL   = "https://api.minecraftservices.com/minecraft/profile"
)

// msaClient walks the Microsoft -> Xbox Live -> XSTS -> Minecraft token
// cascade.
type msaClient struct {
	http *http.Client
}

func newMSAClient() *msaClient {
	return &msaClient{http: &http.Client{Timeout: 20 * time.Second}}
}

// Login runs the interactive flow: a local redirect listener is opened and
// the system browser pointed at the Microsoft authorize page.
func (c *msaClient) Login(ctx context.Context) (*Credentials, error) {
	code, redirectURL, err := c.authorizeInteractive(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("client_id", msaClientID)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", redirectURL)
	tokens, err := c.exchange(ctx, form)
	if err != nil {
		return nil, err
	}
	return c.finish(ctx, tokens)
}

// Refresh exchanges a refresh token without user interaction.
func (c *msaClient) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	form := url.Values{}
	form.Set("client_id", msaClientID)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")
	tokens, err := c.exchange(ctx, form)
	if err != nil {
		return nil, err
	}
	return c.finish(ctx, tokens)
}

func (c *msaClient) authorizeInteractive(ctx context.Context) (code, redirectURL string, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", "", err
	}
	redirectURL = "http://" + ln.Addr().String()

	codeCh := make(chan string, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("code")
		if got == "" {
			_, _ = io.WriteString(w, "Cannot authenticate.")
		} else {
			_, _ = io.WriteString(w, "Logged in. You may close this page.")
		}
		select {
		case codeCh <- got:
		default:
		}
	})}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	q := url.Values{}
	q.Set("client_id", msaClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURL)
	q.Set("scope", "XboxLive.signin offline_access")
	q.Set("prompt", "select_account")
	if err := browser.OpenURL(msAuthorizeURL + "?" + q.Encode()); err != nil {
		return "", "", fmt.Errorf("open browser: %w", err)
	}

	select {
	case code = <-codeCh:
		if code == "" {
			return "", "", fmt.Errorf("authorization denied")
		}
		return code, redirectURL, nil
	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

type msTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (c *msaClient) exchange(ctx context.Context, form url.Values) (*msTokens, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, msTokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var tokens msTokens
	if err := c.doJSON(req, &tokens); err != nil {
		return nil, fmt.Errorf("microsoft token exchange: %w", err)
	}
	return &tokens, nil
}

// finish trades the Microsoft access token for the Minecraft token and
// profile.
func (c *msaClient) finish(ctx context.Context, tokens *msTokens) (*Credentials, error) {
	xblToken, userHash, err := c.xbl(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	xstsToken, err := c.xsts(ctx, xblToken)
	if err != nil {
		return nil, err
	}

	var login struct {
		AccessToken string `json:"access_token"`
	}
	err = c.postJSON(ctx, mcLoginURL, map[string]string{
		"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", userHash, xstsToken),
	}, &login)
	if err != nil {
		return nil, fmt.Errorf("minecraft login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mcProfileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	var profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := c.doJSON(req, &profile); err != nil {
		return nil, fmt.Errorf("minecraft profile: %w", err)
	}

	return &Credentials{
		AccessToken:  login.AccessToken,
		UUID:         profile.ID,
		Username:     profile.Name,
		RefreshToken: tokens.RefreshToken,
	}, nil
}

func (c *msaClient) xbl(ctx context.Context, msToken string) (token, userHash string, err error) {
	body := map[string]any{
		"Properties": map[string]string{
			"AuthMethod": "RPS",
			"SiteName":   "user.auth.xboxlive.com",
			"RpsTicket":  "d=" + msToken,
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}
	var out struct {
		Token         string `json:"Token"`
		DisplayClaims struct {
			XUI []struct {
				UHS string `json:"uhs"`
			} `json:"xui"`
		} `json:"DisplayClaims"`
	}
	if err := c.postJSON(ctx, xblURL, body, &out); err != nil {
		return "", "", fmt.Errorf("xbox live authenticate: %w", err)
	}
	if len(out.DisplayClaims.XUI) == 0 {
		return "", "", fmt.Errorf("xbox live authenticate: no user hash")
	}
	return out.Token, out.DisplayClaims.XUI[0].UHS, nil
}

func (c *msaClient) xsts(ctx context.Context, xblToken string) (string, error) {
	body := map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": []string{xblToken},
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	}
	var out struct {
		Token string `json:"Token"`
	}
	if err := c.postJSON(ctx, xstsURL, body, &out); err != nil {
		return "", fmt.Errorf("xsts authorize: %w", err)
	}
	return out.Token, nil
}

func (c *msaClient) postJSON(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

func (c *msaClient) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s: %s", res.Status, string(data))
	}
	return json.NewDecoder(res.Body).Decode(out)
}
