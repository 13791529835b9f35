package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"url-shortener/internal/auth"
	"url-shortener/internal/db"
	"url-shortener/internal/mocks"
	"url-shortener/internal/otp"
	"url-shortener/internal/renderer"
	"url-shortener/internal/shortener"
)

type apiOptions struct {
	quota          int
	allowedDomains []string
	render         renderer.RenderFunc
}

type testAPI struct {
	router *gin.Engine
	store  *db.Store
	mailer *mocks.MockMailer
}

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func setupTestAPI(t testing.TB, opts ...func(*apiOptions)) *testAPI {
	t.Helper()
	// Set Gin to test mode
	gin.SetMode(gin.TestMode)

	o := apiOptions{quota: 100}
	for _, opt := range opts {
		opt(&o)
	}

	store, err := db.Open(":memory:", zerolog.Nop(), false)
	require.NoError(t, err)
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { store.Close() })

	cfg := shortener.DefaultAllocatorConfig()
	cfg.Quota = o.quota
	allocator := shortener.NewAllocator(store, cfg, zerolog.Nop())

	serviceOpts := []shortener.ServiceOption{shortener.WithAllowedDomains(o.allowedDomains)}
	var queue *renderer.Queue
	if o.render != nil {
		queue = renderer.NewQueue(1, 10, 5*time.Second, o.render, store, zerolog.Nop())
		queue.Start()
		t.Cleanup(func() { _ = queue.Shutdown(context.Background()) })
		serviceOpts = append(serviceOpts, shortener.WithPreviewQueue(queue))
	}

	mailer := mocks.NewMockMailer(gomock.NewController(t))
	tokens := auth.NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 15*24*time.Hour)
	authService := auth.NewService(store, otp.NewDBStore(store), otp.NewGenerator(6, 5*time.Minute), mailer, tokens, bcrypt.MinCost, zerolog.Nop())

	router := SetupRouter(Deps{
		Links:    shortener.NewLinkService(store, allocator, cfg.Quota, zerolog.Nop(), serviceOpts...),
		Resolver: shortener.NewResolver(store, cfg.MaxCodeLength),
		Auth:     authService,
		Queue:    queue,
		DB:       store,
		Log:      zerolog.Nop(),
	})

	return &testAPI{router: router, store: store, mailer: mailer}
}

func (a *testAPI) request(t *testing.T, method, path string, body interface{}, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// signUp registers a user and returns its access token.
func (a *testAPI) signUp(t *testing.T, email string) string {
	t.Helper()
	w := a.request(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Name:     "Ada",
		Email:    email,
		Password: "secret123",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var tokens TokenResponse
	decode(t, w, &tokens)
	return tokens.AccessToken
}

func (a *testAPI) createLink(t *testing.T, token, target string) LinkResponse {
	t.Helper()
	w := a.request(t, http.MethodPost, "/api/v1/links", CreateLinkRequest{OriginalLink: target}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var link LinkResponse
	decode(t, w, &link)
	return link
}

func refreshCookieFrom(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookie {
			return c
		}
	}
	return nil
}

func TestRootHealthAndStatus(t *testing.T) {
	api := setupTestAPI(t)

	w := api.request(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	assert.True(t, env.Success)
	assert.Equal(t, "Server Running Smoothly.", env.Message)

	w = api.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "UP", health["status"])

	w = api.request(t, http.MethodGet, "/status", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, false, status["prerender_enabled"])
	assert.NotContains(t, status, "render_queue")
}

func TestStatusHandlerWithQueue(t *testing.T) {
	api := setupTestAPI(t, func(o *apiOptions) {
		o.render = func(context.Context, string) (string, error) { return "<html></html>", nil }
	})

	w := api.request(t, http.MethodGet, "/status", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "UP", response["status"])

	renderQueue, ok := response["render_queue"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, renderQueue, "worker_count")
	assert.Contains(t, renderQueue, "queue_length")
	assert.Contains(t, renderQueue, "in_progress_count")
}

func TestUnknownRoute(t *testing.T) {
	api := setupTestAPI(t)

	w := api.request(t, http.MethodGet, "/api/v1/nothing-here", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w, nil)
	assert.False(t, env.Success)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)
	assert.Equal(t, "The API endpoint '/api/v1/nothing-here' was not found.", env.Message)
}

func TestCreateLinkHandler(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		anonymous      bool
		expectedStatus int
	}{
		{
			name:           "valid URL",
			requestBody:    CreateLinkRequest{OriginalLink: "https://example.com/test"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid json",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing URL",
			requestBody:    map[string]string{"noturl": "test"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid URL format",
			requestBody:    CreateLinkRequest{OriginalLink: "not-a-valid-url"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unsupported scheme",
			requestBody:    CreateLinkRequest{OriginalLink: "ftp://example.com/file"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not signed in",
			requestBody:    CreateLinkRequest{OriginalLink: "https://example.com/test"},
			anonymous:      true,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestAPI(t)
			token := api.signUp(t, "ada@example.com")
			if tt.anonymous {
				token = ""
			}

			w := api.request(t, http.MethodPost, "/api/v1/links", tt.requestBody, token)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())

			if tt.expectedStatus == http.StatusCreated {
				var link LinkResponse
				env := decode(t, w, &link)
				assert.True(t, env.Success)
				assert.NotEmpty(t, link.ID)
				assert.Len(t, link.Keyword, 6) // Default short code length
				assert.Equal(t, "https://example.com/test", link.OriginalURL)
				assert.Zero(t, link.Clicks)
			} else {
				assert.False(t, decode(t, w, nil).Success)
			}
		})
	}
}

func TestCreateLinkWithDomainRestriction(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		expectedStatus int
	}{
		{
			name:           "allowed domain",
			url:            "https://allowed.com/page",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "another allowed domain",
			url:            "https://example.org/test",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "forbidden domain",
			url:            "https://forbidden.com/page",
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestAPI(t, func(o *apiOptions) {
				o.allowedDomains = []string{"allowed.com", "example.org"}
			})
			token := api.signUp(t, "ada@example.com")

			w := api.request(t, http.MethodPost, "/api/v1/links", CreateLinkRequest{OriginalLink: tt.url}, token)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestCreateLinkQuota(t *testing.T) {
	api := setupTestAPI(t, func(o *apiOptions) { o.quota = 2 })
	token := api.signUp(t, "ada@example.com")

	first := api.createLink(t, token, "https://example.com/1")
	api.createLink(t, token, "https://example.com/2")

	w := api.request(t, http.MethodPost, "/api/v1/links", CreateLinkRequest{OriginalLink: "https://example.com/3"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Deleting does not give the slot back.
	w = api.request(t, http.MethodDelete, "/api/v1/links/"+first.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	w = api.request(t, http.MethodPost, "/api/v1/links", CreateLinkRequest{OriginalLink: "https://example.com/3"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.request(t, http.MethodGet, "/api/v1/links/count", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var count LinkCountResponse
	decode(t, w, &count)
	assert.Equal(t, LinkCountResponse{Total: 2, Limit: 2}, count)
}

func TestListLinksHandler(t *testing.T) {
	api := setupTestAPI(t)
	ada := api.signUp(t, "ada@example.com")
	bob := api.signUp(t, "bob@example.com")

	a1 := api.createLink(t, ada, "https://example.com/a1")
	a2 := api.createLink(t, ada, "https://example.com/a2")
	api.createLink(t, bob, "https://example.com/b1")

	w := api.request(t, http.MethodGet, "/api/v1/links", nil, ada)
	require.Equal(t, http.StatusOK, w.Code)
	var links []LinkResponse
	decode(t, w, &links)
	require.Len(t, links, 2)
	assert.ElementsMatch(t, []string{a1.ID, a2.ID}, []string{links[0].ID, links[1].ID})

	w = api.request(t, http.MethodDelete, "/api/v1/links/"+a1.ID, nil, ada)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.request(t, http.MethodGet, "/api/v1/links", nil, ada)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &links)
	require.Len(t, links, 1)
	assert.Equal(t, a2.ID, links[0].ID)

	t.Run("empty list is an array", func(t *testing.T) {
		carol := api.signUp(t, "carol@example.com")
		w := api.request(t, http.MethodGet, "/api/v1/links", nil, carol)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", string(decode(t, w, nil).Data))
	})
}

func TestGetLinkByKeyHandler(t *testing.T) {
	api := setupTestAPI(t)
	ada := api.signUp(t, "ada@example.com")
	bob := api.signUp(t, "bob@example.com")
	link := api.createLink(t, ada, "https://example.com/key")

	tests := []struct {
		name           string
		token          string
		key            string
		expectedStatus int
	}{
		{"owner", ada, link.Keyword, http.StatusOK},
		{"someone else", bob, link.Keyword, http.StatusNotFound},
		{"unknown key", ada, "zzzzzz", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.request(t, http.MethodGet, "/api/v1/links/key/"+tt.key, nil, tt.token)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var got LinkResponse
				decode(t, w, &got)
				assert.Equal(t, link.ID, got.ID)
			}
		})
	}
}

func TestDeleteLinkHandler(t *testing.T) {
	api := setupTestAPI(t)
	ada := api.signUp(t, "ada@example.com")
	bob := api.signUp(t, "bob@example.com")
	link := api.createLink(t, ada, "https://example.com/delete")

	w := api.request(t, http.MethodDelete, "/api/v1/links/"+link.ID, nil, bob)
	assert.Equal(t, http.StatusNotFound, w.Code, "other owners cannot see the link")

	w = api.request(t, http.MethodDelete, "/api/v1/links/"+link.ID, nil, ada)
	assert.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "Link deleted successfully.", env.Message)

	w = api.request(t, http.MethodDelete, "/api/v1/links/"+link.ID, nil, ada)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.request(t, http.MethodGet, "/"+link.Keyword, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "retired codes stop resolving")
}

func TestRedirectHandler(t *testing.T) {
	tests := []struct {
		name           string
		shortCode      string
		userAgent      string
		link           *db.Link
		retire         bool
		expectedStatus int
		expectedHeader string
	}{
		{
			name:      "redirect user to original URL",
			shortCode: "USER12",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			link: &db.Link{
				Keyword:     "USER12",
				OriginalURL: "https://redirect-test.com/a/b?c=1",
			},
			expectedStatus: http.StatusFound,
			expectedHeader: "https://redirect-test.com/a/b?c=1",
		},
		{
			name:      "serve HTML to bot",
			shortCode: "BOT123",
			userAgent: "Googlebot/2.1 (+http://www.google.com/bot.html)",
			link: &db.Link{
				Keyword:       "BOT123",
				OriginalURL:   "https://bot-test.com",
				PreviewHTML:   "<html><body>Rendered Content</body></html>",
				PreviewStatus: db.PreviewCompleted,
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "short code not found",
			shortCode:      "NOTFND",
			userAgent:      "Mozilla/5.0",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "malformed code",
			shortCode:      "bad-code",
			userAgent:      "Mozilla/5.0",
			expectedStatus: http.StatusNotFound,
		},
		{
			name:      "retired link",
			shortCode: "GONE12",
			userAgent: "Mozilla/5.0",
			link: &db.Link{
				Keyword:     "GONE12",
				OriginalURL: "https://retired.com",
			},
			retire:         true,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:      "bot with failed rendering",
			shortCode: "FAIL12",
			userAgent: "Googlebot/2.1",
			link: &db.Link{
				Keyword:       "FAIL12",
				OriginalURL:   "https://failed-test.com",
				PreviewStatus: db.PreviewFailed,
			},
			expectedStatus: http.StatusFound,
			expectedHeader: "https://failed-test.com",
		},
		{
			name:      "bot without preview queue",
			shortCode: "PEND12",
			userAgent: "Googlebot/2.1",
			link: &db.Link{
				Keyword:       "PEND12",
				OriginalURL:   "https://pending-test.com",
				PreviewStatus: db.PreviewPending,
			},
			expectedStatus: http.StatusFound,
			expectedHeader: "https://pending-test.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := setupTestAPI(t)
			ctx := context.Background()

			if tt.link != nil {
				tt.link.OwnerID = "owner-1"
				require.NoError(t, api.store.CreateLink(ctx, tt.link))
				if tt.retire {
					require.NoError(t, api.store.RetireLink(ctx, "owner-1", tt.link.ID))
				}
			}

			req, err := http.NewRequest(http.MethodGet, "/"+tt.shortCode, nil)
			require.NoError(t, err)
			req.Header.Set("User-Agent", tt.userAgent)

			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedHeader != "" {
				assert.Equal(t, tt.expectedHeader, w.Header().Get("Location"))
			}

			switch tt.expectedStatus {
			case http.StatusOK:
				assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
				assert.Equal(t, tt.link.PreviewHTML, w.Body.String())
			case http.StatusNotFound:
				env := decode(t, w, nil)
				assert.Equal(t, msgNotFound, env.Message)
			}
		})
	}
}

func TestRedirectCountsClicks(t *testing.T) {
	api := setupTestAPI(t)
	token := api.signUp(t, "ada@example.com")
	link := api.createLink(t, token, "https://example.com/clicks")

	for i := 0; i < 3; i++ {
		w := api.request(t, http.MethodGet, "/"+link.Keyword, nil, "")
		require.Equal(t, http.StatusFound, w.Code)
	}
	// Misses never touch counters.
	api.request(t, http.MethodGet, "/"+link.Keyword+"x", nil, "")

	w := api.request(t, http.MethodGet, "/api/v1/links/key/"+link.Keyword, nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var got LinkResponse
	decode(t, w, &got)
	assert.Equal(t, int64(3), got.Clicks)
}

func TestRedirectWaitsForPreview(t *testing.T) {
	api := setupTestAPI(t, func(o *apiOptions) {
		o.render = func(_ context.Context, url string) (string, error) {
			time.Sleep(50 * time.Millisecond)
			return "<html>preview of " + url + "</html>", nil
		}
	})
	token := api.signUp(t, "ada@example.com")
	link := api.createLink(t, token, "https://example.com/slow")

	req, err := http.NewRequest(http.MethodGet, "/"+link.Keyword, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "Twitterbot/1.0")

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>preview of https://example.com/slow</html>", w.Body.String())
}

func TestRedirectHandlerBotDetection(t *testing.T) {
	api := setupTestAPI(t)

	// Setup a link with rendered content
	require.NoError(t, api.store.CreateLink(context.Background(), &db.Link{
		OwnerID:       "owner-1",
		Keyword:       "DETECT",
		OriginalURL:   "https://detection-test.com",
		PreviewHTML:   "<html><body>Bot Content</body></html>",
		PreviewStatus: db.PreviewCompleted,
	}))

	botUserAgents := []string{
		"Googlebot/2.1 (+http://www.google.com/bot.html)",
		"Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)",
		"Slurp/3.0 (slurp@inktomi.com; http://www.inktomi.com/slurp.html)",
		"DuckDuckBot/1.1; (+http://duckduckgo.com/duckduckbot.html)",
		"BaiduSpider/2.0",
		"YandexBot/3.0",
		"facebookexternalhit/1.1",
		"Twitterbot/1.0",
		"LinkedInBot/1.0",
		"SomeCustomBot/1.0",
		"Web Crawler 1.0",
		"Search Spider",
	}

	for _, userAgent := range botUserAgents {
		t.Run("bot_detection_"+userAgent, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/DETECT", nil)
			require.NoError(t, err)
			req.Header.Set("User-Agent", userAgent)

			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, w.Body.String(), "Bot Content")
		})
	}

	// Test regular user agents
	regularUserAgents := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
	}

	for _, userAgent := range regularUserAgents {
		t.Run("user_detection_"+userAgent, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/DETECT", nil)
			require.NoError(t, err)
			req.Header.Set("User-Agent", userAgent)

			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "https://detection-test.com", w.Header().Get("Location"))
		})
	}
}

func TestAuthFlow(t *testing.T) {
	api := setupTestAPI(t)

	w := api.request(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "secret123", Mobile: "+4400000",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	cookie := refreshCookieFrom(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, int((15 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	t.Run("duplicate email", func(t *testing.T) {
		w := api.request(t, http.MethodPost, "/api/v1/auth/register", RegisterRequest{
			Name: "Ada", Email: "ADA@example.com", Password: "secret123",
		}, "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("login", func(t *testing.T) {
		tests := []struct {
			name           string
			email          string
			password       string
			expectedStatus int
		}{
			{"correct credentials", "ada@example.com", "secret123", http.StatusOK},
			{"wrong password", "ada@example.com", "wrong-pass", http.StatusUnauthorized},
			{"unknown email", "nobody@example.com", "secret123", http.StatusUnauthorized},
			{"malformed email", "not-an-email", "secret123", http.StatusBadRequest},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := api.request(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: tt.email, Password: tt.password}, "")
				assert.Equal(t, tt.expectedStatus, w.Code)
				if tt.expectedStatus == http.StatusOK {
					var tokens TokenResponse
					decode(t, w, &tokens)
					assert.NotEmpty(t, tokens.AccessToken)
					assert.NotNil(t, refreshCookieFrom(w))
				}
			})
		}
	})

	t.Run("refresh token", func(t *testing.T) {
		w := api.request(t, http.MethodPost, "/api/v1/auth/refresh-token", nil, "", cookie)
		require.Equal(t, http.StatusOK, w.Code)
		var tokens TokenResponse
		decode(t, w, &tokens)

		w = api.request(t, http.MethodGet, "/api/v1/auth/me", nil, tokens.AccessToken)
		require.Equal(t, http.StatusOK, w.Code)
		var me UserResponse
		decode(t, w, &me)
		assert.Equal(t, "ada@example.com", me.Email)
		assert.Equal(t, "+4400000", me.Mobile)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("refresh without cookie", func(t *testing.T) {
		w := api.request(t, http.MethodPost, "/api/v1/auth/refresh-token", nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logout clears cookie", func(t *testing.T) {
		w := api.request(t, http.MethodPost, "/api/v1/auth/logout", nil, "")
		require.Equal(t, http.StatusOK, w.Code)
		cleared := refreshCookieFrom(w)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		assert.Negative(t, cleared.MaxAge)
	})
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
	}{
		{"short name", RegisterRequest{Name: "A", Email: "a@example.com", Password: "secret123"}},
		{"bad email", RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "secret123"}},
		{"short password", RegisterRequest{Name: "Ada", Email: "a@example.com", Password: "123"}},
		{"missing fields", RegisterRequest{}},
	}

	api := setupTestAPI(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.request(t, http.MethodPost, "/api/v1/auth/register", tt.request, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, msgValidation, decode(t, w, nil).Message)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	api := setupTestAPI(t)
	access := api.signUp(t, "ada@example.com")

	w := api.request(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ada@example.com", Password: "secret123"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	refresh := refreshCookieFrom(w).Value

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic " + access, http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized},
		{"refresh token used as access", "Bearer " + refresh, http.StatusUnauthorized},
		{"valid token", "Bearer " + access, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/links", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			api.router.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestPasswordResetFlow(t *testing.T) {
	api := setupTestAPI(t)
	api.signUp(t, "ada@example.com")

	var code string
	api.mailer.EXPECT().
		SendOTP(gomock.Any(), "ada@example.com", "Ada", gomock.Any(), 5*time.Minute).
		DoAndReturn(func(_ context.Context, _, _, c string, _ time.Duration) error {
			code = c
			return nil
		})

	w := api.request(t, http.MethodPost, "/api/v1/auth/forgot-password", EmailRequest{Email: "ada@example.com"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, code, 6)

	w = api.request(t, http.MethodPost, "/api/v1/auth/forgot-password", EmailRequest{Email: "nobody@example.com"}, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.request(t, http.MethodPost, "/api/v1/auth/reset-password", ResetPasswordRequest{Email: "ada@example.com", NewPassword: "newsecret"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "reset needs a verified code")

	w = api.request(t, http.MethodPost, "/api/v1/auth/verify-otp", VerifyOTPRequest{Email: "ada@example.com", OTP: "12ab56"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Codes never start with zero, so this one cannot match.
	w = api.request(t, http.MethodPost, "/api/v1/auth/verify-otp", VerifyOTPRequest{Email: "ada@example.com", OTP: "000000"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.request(t, http.MethodPost, "/api/v1/auth/verify-otp", VerifyOTPRequest{Email: "ada@example.com", OTP: code}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.request(t, http.MethodPost, "/api/v1/auth/reset-password", ResetPasswordRequest{Email: "ada@example.com", NewPassword: "newsecret"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = api.request(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ada@example.com", Password: "secret123"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = api.request(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ada@example.com", Password: "newsecret"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangePasswordHandler(t *testing.T) {
	api := setupTestAPI(t)
	token := api.signUp(t, "ada@example.com")

	w := api.request(t, http.MethodPost, "/api/v1/auth/change-password", ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newsecret"}, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.request(t, http.MethodPost, "/api/v1/auth/change-password", ChangePasswordRequest{CurrentPassword: "secret123", NewPassword: "newsecret"}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.request(t, http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "ada@example.com", Password: "newsecret"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func BenchmarkRedirectHandler(b *testing.B) {
	api := setupTestAPI(b)

	// Setup test link
	_ = api.store.CreateLink(context.Background(), &db.Link{
		OwnerID:     "owner-1",
		Keyword:     "BENCH1",
		OriginalURL: "https://benchmark-redirect.com",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req, _ := http.NewRequest(http.MethodGet, "/BENCH1", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (test)")

		w := httptest.NewRecorder()
		api.router.ServeHTTP(w, req)
	}
}
