package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// FacebookScopes 广告管理所需权限
var FacebookScopes = []string{"email", "ads_management", "ads_read", "business_management"}

// 长期令牌未返回 expires_in 时的默认有效期
const defaultLongLivedTTL = 60 * 24 * time.Hour

// LongLivedToken fb_exchange_token 的结果
type LongLivedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

type FacebookOAuth struct {
	config     *oauth2.Config
	graphURL   string
	httpClient *http.Client
}

// NewFacebookOAuth graphURL 形如 https://graph.facebook.com/v18.0，版本号同时用于授权对话框
func NewFacebookOAuth(appID, appSecret, redirectURI, graphURL string) *FacebookOAuth {
	graphURL = strings.TrimRight(graphURL, "/")
	version := graphURL[strings.LastIndex(graphURL, "/")+1:]

	return &FacebookOAuth{
		config: &oauth2.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			RedirectURL:  redirectURI,
			Scopes:       FacebookScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.facebook.com/" + version + "/dialog/oauth",
				TokenURL:  graphURL + "/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		graphURL:   graphURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured 是否配置了应用凭据
func (f *FacebookOAuth) Configured() bool {
	return f.config.ClientID != "" && f.config.ClientSecret != ""
}

// GetAuthURL 获取 Facebook 授权 URL
func (f *FacebookOAuth) GetAuthURL(state string) string {
	return f.config.AuthCodeURL(state)
}

// Exchange 用授权码换取短期 access token
func (f *FacebookOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.config.Exchange(ctx, code)
}

// ExchangeLongLived 用短期令牌换取长期令牌
func (f *FacebookOAuth) ExchangeLongLived(ctx context.Context, shortToken string) (*LongLivedToken, error) {
	params := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {f.config.ClientID},
		"client_secret":     {f.config.ClientSecret},
		"fb_exchange_token": {shortToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.graphURL+"/oauth/access_token?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange long-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("facebook token exchange error: %s", string(body))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("facebook token exchange returned empty token")
	}

	ttl := defaultLongLivedTTL
	if out.ExpiresIn > 0 {
		ttl = time.Duration(out.ExpiresIn) * time.Second
	}

	return &LongLivedToken{
		AccessToken: out.AccessToken,
		ExpiresAt:   time.Now().Add(ttl),
	}, nil
}
