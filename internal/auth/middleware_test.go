package auth_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/auth"
	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
	"github.com/frahmantamala/leaf/internal/permission"
	"github.com/frahmantamala/leaf/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Auth Middleware", func() {
	var (
		service *auth.Service
		mw      *auth.Middleware
		handler http.Handler
	)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, found := internal.UserFromContext(r.Context())
		Expect(found).To(BeTrue())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(u.Email))
	})

	detail := func(rec *httptest.ResponseRecorder) string {
		var body internal.Response
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Detail.(string)
	}

	do := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		users := newFakeUsers(
			&userDatamodel.User{ID: 1, Email: "a@x.it"},
			&userDatamodel.User{ID: 2, Email: "b@x.it", Disabled: true},
			&userDatamodel.User{ID: 3, Email: "admin@x.it", Permissions: int(permission.GrantPermissions)},
			&userDatamodel.User{ID: 4, Email: "mod@x.it", Groups: []userDatamodel.Group{
				{ID: 1, Name: "moderators", Permissions: int(permission.ReadThreats | permission.GrantPermissions)},
			}},
		)
		service, _, _ = newService(users)
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		mw = auth.NewMiddleware(transport.NewBaseHandler(lg), service)
		handler = mw.Authenticate(mw.RequireActive(ok))
	})

	token := func(email string) string {
		t, err := service.IssueAccessToken(email, 0)
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	It("passes an active user through", func() {
		rec := do(token("a@x.it"))
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("a@x.it"))
	})

	It("answers 401 with a bearer challenge when the header is missing", func() {
		rec := do("")
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(rec.Header().Get("WWW-Authenticate")).To(Equal("Bearer"))
		Expect(detail(rec)).To(Equal("Could not validate credentials"))
	})

	It("answers 401 for a confirmation token", func() {
		confirmation, err := service.IssueConfirmationToken("a@x.it")
		Expect(err).NotTo(HaveOccurred())
		rec := do(confirmation)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("answers 400 for a disabled user", func() {
		rec := do(token("b@x.it"))
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(detail(rec)).To(Equal("Inactive user"))
	})

	Describe("RequirePermission", func() {
		BeforeEach(func() {
			handler = mw.Authenticate(mw.RequireActive(mw.RequirePermission(permission.GrantPermissions)(ok)))
		})

		It("forbids users without the bit", func() {
			rec := do(token("a@x.it"))
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("accepts the user's own bit", func() {
			Expect(do(token("admin@x.it")).Code).To(Equal(http.StatusOK))
		})

		It("accepts a bit granted through a group", func() {
			Expect(do(token("mod@x.it")).Code).To(Equal(http.StatusOK))
		})
	})
})
