package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/auth"
	userDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/user"
	"github.com/frahmantamala/leaf/internal/core/events"
	"github.com/frahmantamala/leaf/internal/mailer"
	"github.com/frahmantamala/leaf/internal/media"
	"github.com/frahmantamala/leaf/internal/notification"
	"github.com/frahmantamala/leaf/internal/permission"
	"github.com/frahmantamala/leaf/internal/tasks"
	"github.com/frahmantamala/leaf/internal/transport"
	"github.com/frahmantamala/leaf/internal/user"
	userPostgres "github.com/frahmantamala/leaf/internal/user/postgres"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type detail struct {
	Detail interface{} `json:"detail"`
}

func pngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 10, G: uint8(y), B: uint8(x), A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("User Handler Integration", func() {
	var (
		ctx     context.Context
		repo    *userPostgres.UserRepository
		queue   *tasks.MemoryQueue
		signer  *auth.ConfirmationSigner
		tokens  *auth.JWTTokenGenerator
		storage *media.LocalStorage
		router  *chi.Mux
	)

	BeforeEach(func() {
		ctx = context.Background()
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(userDatamodel.SetupJoinTables(db)).To(Succeed())
		Expect(db.AutoMigrate(&userDatamodel.User{}, &userDatamodel.Group{})).To(Succeed())

		repo = userPostgres.NewUserRepository(db)

		tokens, err = auth.NewJWTTokenGenerator(testSecret, "HS256", 0)
		Expect(err).NotTo(HaveOccurred())
		signer, err = auth.NewConfirmationSigner(testSecret, "salt", time.Hour)
		Expect(err).NotTo(HaveOccurred())
		authService := auth.NewService(repo, tokens, signer, 4, slogger)

		sizes, err := media.NewSizes([]string{"small", "medium"}, map[string]string{
			"small":  "64x64",
			"medium": "256x256",
		})
		Expect(err).NotTo(HaveOccurred())
		storage = media.NewLocalStorageFs(afero.NewBasePathFs(afero.NewMemMapFs(), "/media"))
		images := media.NewImages(storage, sizes, "/media")

		queue = tasks.NewMemoryQueue(16)
		client := tasks.NewClient(queue, slogger)

		bus := events.NewEventBus(slogger)
		composer := mailer.NewComposer(internal.MailConfig{
			Email:            "noreply@leaf.local",
			ConfirmationURL:  "http://leaf.local/confirm/{{.ConfirmationToken}}",
			PasswordResetURL: "http://leaf.local/reset/{{.ConfirmationToken}}",
		})
		notification.NewEventHandler(composer, client, slogger).RegisterEventHandlers(bus)

		service := user.NewService(repo, authService, images, client, bus, user.ServiceConfig{
			ConfirmationMaxAge: time.Hour,
		}, slogger)
		base := transport.NewBaseHandler(slogger)
		handler := user.NewHandler(base, service, images, 1<<20)
		mw := auth.NewMiddleware(base, authService)

		router = chi.NewRouter()
		router.Route("/users", func(r chi.Router) {
			r.Post("/token", handler.Token)
			r.Post("/register", handler.Register)
			r.Post("/confirm", handler.Confirm)
			r.Post("/password-reset", handler.PasswordReset)
			r.Post("/password-reset-confirm", handler.PasswordResetConfirm)
			r.Group(func(pr chi.Router) {
				pr.Use(mw.Authenticate, mw.RequireActive)
				pr.Get("/me", handler.Me)
				pr.Put("/user-image", handler.UpdateImage)
				pr.With(mw.RequirePermission(permission.GrantPermissions)).Post("/{email}/permissions/grant", handler.GrantPermissions)
				pr.With(mw.RequirePermission(permission.RevokePermissions)).Post("/{email}/permissions/revoke", handler.RevokePermissions)
			})
		})
	})

	do := func(method, path, body string, headers ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeUser := func(w *httptest.ResponseRecorder) user.UserResponse {
		var resp user.UserResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp
	}

	decodeDetail := func(w *httptest.ResponseRecorder) interface{} {
		var d detail
		Expect(json.NewDecoder(w.Body).Decode(&d)).To(Succeed())
		return d.Detail
	}

	register := func(email string) {
		w := do(http.MethodPost, "/users/register",
			`{"email":"`+email+`","password":"P@ss1","first_name":"A","last_name":"B"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
	}

	activate := func(email string) {
		key, err := signer.Sign(email)
		Expect(err).NotTo(HaveOccurred())
		w := do(http.MethodPost, "/users/confirm", `{"key":"`+key+`"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
	}

	login := func(email string) string {
		w := do(http.MethodPost, "/users/token", `{"username":"`+email+`","password":"P@ss1"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		var resp user.TokenResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp.AccessToken
	}

	It("registers a disabled user, queues one confirmation mail and activates on confirm", func() {
		w := do(http.MethodPost, "/users/register",
			`{"email":"a@x.it","password":"P@ss1","first_name":"A","last_name":"B"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		created := decodeUser(w)
		Expect(created.Email).To(Equal("a@x.it"))
		Expect(created.Disabled).To(BeTrue())
		Expect(created.ProfileImage).To(BeNil())
		Expect(created.Permissions).To(HaveLen(6))
		Expect(created.Groups).To(BeEmpty())

		queued := queue.Drain()
		Expect(queued).To(HaveLen(1))
		Expect(queued[0].Name).To(Equal(tasks.TaskSendMail))
		var payload tasks.SendMailPayload
		Expect(queued[0].Decode(&payload)).To(Succeed())
		Expect(payload.To).To(Equal("a@x.it"))
		Expect(payload.Message).To(ContainSubstring("Subject: " + mailer.ConfirmationSubject))

		key, err := signer.Sign("a@x.it")
		Expect(err).NotTo(HaveOccurred())
		w = do(http.MethodPost, "/users/confirm", `{"key":"`+key+`"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decodeUser(w).Disabled).To(BeFalse())

		w = do(http.MethodPost, "/users/confirm", `{"key":"`+key+`"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(decodeUser(w).Disabled).To(BeFalse())
	})

	It("rejects a duplicate registration with 409", func() {
		register("a@x.it")
		w := do(http.MethodPost, "/users/register",
			`{"email":"a@x.it","password":"other","first_name":"C","last_name":"D"}`)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(decodeDetail(w)).To(Equal("Email already registered"))
	})

	It("rejects an invalid registration body with 422", func() {
		w := do(http.MethodPost, "/users/register", `{"email":"not-an-email","password":"P@ss1"}`)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
		Expect(queue.Len()).To(BeZero())
	})

	It("ignores fields the registration body does not declare", func() {
		w := do(http.MethodPost, "/users/register",
			`{"email":"a@x.it","password":"P@ss1","first_name":"A","last_name":"B","phone":"+39 055 000"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(decodeUser(w).Email).To(Equal("a@x.it"))
	})

	It("rejects a password longer than bcrypt can hash with 422", func() {
		long := strings.Repeat("p", 80)
		w := do(http.MethodPost, "/users/register",
			`{"email":"a@x.it","password":"`+long+`","first_name":"A","last_name":"B"}`)
		Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))

		u, err := repo.FindByEmail(ctx, "a@x.it")
		Expect(err).NotTo(HaveOccurred())
		Expect(u).To(BeNil())
	})

	It("rejects a bad or expired confirmation key", func() {
		register("a@x.it")

		w := do(http.MethodPost, "/users/confirm", `{"key":"garbage"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeDetail(w)).To(Equal("Invalid token"))

		signer.Clock = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		old, err := signer.Sign("a@x.it")
		Expect(err).NotTo(HaveOccurred())
		signer.Clock = time.Now

		w = do(http.MethodPost, "/users/confirm", `{"key":"`+old+`"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeDetail(w)).To(Equal("Invalid token"))

		u, err := repo.FindByEmail(ctx, "a@x.it")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Disabled).To(BeTrue())
	})

	Describe("POST /users/token", func() {
		It("refuses a disabled user with the generic 401", func() {
			register("a@x.it")
			w := do(http.MethodPost, "/users/token", `{"username":"a@x.it","password":"P@ss1"}`)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(w.Header().Get("WWW-Authenticate")).To(Equal("Bearer"))
			Expect(decodeDetail(w)).To(Equal("Incorrect username or password"))
		})

		It("issues a bearer token whose subject is the email", func() {
			register("a@x.it")
			activate("a@x.it")

			w := do(http.MethodPost, "/users/token", `{"username":"a@x.it","password":"P@ss1"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			var resp user.TokenResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.TokenType).To(Equal("bearer"))
			Expect(resp.User.Email).To(Equal("a@x.it"))

			sub, err := tokens.ValidateToken(resp.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(sub).To(Equal("a@x.it"))
		})

		It("rejects a wrong password", func() {
			register("a@x.it")
			activate("a@x.it")
			w := do(http.MethodPost, "/users/token", `{"username":"a@x.it","password":"nope"}`)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("password reset", func() {
		It("answers the same way for unknown accounts and queues nothing", func() {
			w := do(http.MethodPost, "/users/password-reset", `{"email":"ghost@x.it"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeDetail(w)).To(Equal(user.PasswordResetSentDetail))
			Expect(queue.Len()).To(BeZero())
		})

		It("queues nothing for a disabled account", func() {
			register("a@x.it")
			queue.Drain()
			w := do(http.MethodPost, "/users/password-reset", `{"email":"a@x.it"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(queue.Len()).To(BeZero())
		})

		It("queues the reset mail and changes the password on confirm", func() {
			register("a@x.it")
			activate("a@x.it")
			queue.Drain()

			w := do(http.MethodPost, "/users/password-reset", `{"email":"a@x.it"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeDetail(w)).To(Equal(user.PasswordResetSentDetail))
			queued := queue.Drain()
			Expect(queued).To(HaveLen(1))
			var payload tasks.SendMailPayload
			Expect(queued[0].Decode(&payload)).To(Succeed())
			Expect(payload.Message).To(ContainSubstring("Subject: " + mailer.PasswordResetSubject))

			key, err := signer.Sign("a@x.it")
			Expect(err).NotTo(HaveOccurred())
			w = do(http.MethodPost, "/users/password-reset-confirm", `{"key":"`+key+`","new_password":"N3w!"}`)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeUser(w).Disabled).To(BeFalse())

			u, err := repo.FindByEmail(ctx, "a@x.it")
			Expect(err).NotTo(HaveOccurred())
			Expect(auth.VerifyPassword("N3w!", u.HashedPassword)).To(BeTrue())
		})

		It("rejects an overlong new password with 422 and keeps the hash", func() {
			register("a@x.it")
			before, err := repo.FindByEmail(ctx, "a@x.it")
			Expect(err).NotTo(HaveOccurred())

			key, err := signer.Sign("a@x.it")
			Expect(err).NotTo(HaveOccurred())
			w := do(http.MethodPost, "/users/password-reset-confirm",
				`{"key":"`+key+`","new_password":"`+strings.Repeat("p", 80)+`"}`)
			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))

			after, err := repo.FindByEmail(ctx, "a@x.it")
			Expect(err).NotTo(HaveOccurred())
			Expect(after.HashedPassword).To(Equal(before.HashedPassword))
		})

		It("leaves the hash unchanged for an invalid key", func() {
			register("a@x.it")
			before, err := repo.FindByEmail(ctx, "a@x.it")
			Expect(err).NotTo(HaveOccurred())

			w := do(http.MethodPost, "/users/password-reset-confirm", `{"key":"garbage","new_password":"N3w!"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeDetail(w)).To(Equal("Invalid token"))

			after, err := repo.FindByEmail(ctx, "a@x.it")
			Expect(err).NotTo(HaveOccurred())
			Expect(after.HashedPassword).To(Equal(before.HashedPassword))
		})
	})

	Describe("authenticated routes", func() {
		var token string

		BeforeEach(func() {
			register("a@x.it")
			activate("a@x.it")
			token = login("a@x.it")
			queue.Drain()
		})

		It("returns the current user", func() {
			w := do(http.MethodGet, "/users/me", "", "Authorization", "Bearer "+token)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decodeUser(w).Email).To(Equal("a@x.it"))
		})

		It("requires a bearer token", func() {
			w := do(http.MethodGet, "/users/me", "")
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(w.Header().Get("WWW-Authenticate")).To(Equal("Bearer"))
			Expect(decodeDetail(w)).To(Equal("Could not validate credentials"))
		})

		It("rejects an unknown image size", func() {
			w := do(http.MethodGet, "/users/me", "", "Authorization", "Bearer "+token, "image_size", "huge")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(decodeDetail(w)).To(Equal("Wrong image size! Available sizes are: ['small', 'medium']"))
		})

		upload := func(filename string, data []byte) *httptest.ResponseRecorder {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			part, err := mw.CreateFormFile("image", filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			req := httptest.NewRequest(http.MethodPut, "/users/user-image", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("image_size", "medium")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			return w
		}

		It("replaces the profile image and queues the resize", func() {
			w := upload("avatar.png", pngBytes())

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decodeUser(w)
			Expect(resp.ProfileImage).NotTo(BeNil())
			Expect(*resp.ProfileImage).To(HaveSuffix("/256_user_image.png"))
			Expect(*resp.ProfileImage).To(HavePrefix("/media/"))

			queued := queue.Drain()
			Expect(queued).To(HaveLen(1))
			Expect(queued[0].Name).To(Equal(tasks.TaskResizeImage))
			var payload tasks.ResizeImagePayload
			Expect(queued[0].Decode(&payload)).To(Succeed())
			Expect(payload.Sizes).To(HaveLen(2))

			rc, err := storage.Get(ctx, payload.Key)
			Expect(err).NotTo(HaveOccurred())
			data, err := io.ReadAll(rc)
			Expect(err).NotTo(HaveOccurred())
			Expect(rc.Close()).To(Succeed())
			Expect(data).To(Equal(pngBytes()))
		})

		It("names the stored image after its decoded format, not the upload name", func() {
			w := upload("evil.html", pngBytes())
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(*decodeUser(w).ProfileImage).To(HaveSuffix("/256_user_image.png"))

			u, err := repo.FindByEmail(ctx, "a@x.it")
			Expect(err).NotTo(HaveOccurred())
			keys, err := storage.List(ctx, strconv.FormatInt(u.ID, 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(ConsistOf(media.ImageKey(u.ID, "user_image.png")))
		})

		It("rejects a file that is not an image and keeps the earlier one", func() {
			Expect(upload("avatar.png", pngBytes()).Code).To(Equal(http.StatusOK))
			queue.Drain()

			w := upload("notes.txt", []byte("hello"))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(queue.Len()).To(BeZero())

			u, err := repo.FindByEmail(ctx, "a@x.it")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ProfileImage).NotTo(BeNil())
			Expect(*u.ProfileImage).To(Equal("user_image.png"))

			rc, err := storage.Get(ctx, media.ImageKey(u.ID, *u.ProfileImage))
			Expect(err).NotTo(HaveOccurred())
			data, err := io.ReadAll(rc)
			Expect(err).NotTo(HaveOccurred())
			Expect(rc.Close()).To(Succeed())
			Expect(data).To(Equal(pngBytes()))
		})

		Describe("permissions", func() {
			var adminToken string

			BeforeEach(func() {
				hash, err := auth.HashPassword("P@ss1", 4)
				Expect(err).NotTo(HaveOccurred())
				disabled := false
				_, err = repo.Create(ctx, user.CreateAttrs{
					Email:          "admin@x.it",
					HashedPassword: hash,
					FirstName:      "Ad",
					LastName:       "Min",
					Permissions:    int(permission.All),
					Disabled:       &disabled,
				})
				Expect(err).NotTo(HaveOccurred())
				adminToken = login("admin@x.it")
			})

			It("grants and revokes named permissions", func() {
				w := do(http.MethodPost, "/users/a@x.it/permissions/grant",
					`{"permissions":["read_threats","modify_threats"]}`, "Authorization", "Bearer "+adminToken)
				Expect(w.Code).To(Equal(http.StatusOK))
				granted := decodeUser(w)
				Expect(granted.Permissions["read_threats"]).To(BeTrue())
				Expect(granted.Permissions["modify_threats"]).To(BeTrue())

				w = do(http.MethodPost, "/users/a@x.it/permissions/revoke",
					`{"permissions":["modify_threats"]}`, "Authorization", "Bearer "+adminToken)
				Expect(w.Code).To(Equal(http.StatusOK))
				revoked := decodeUser(w)
				Expect(revoked.Permissions["read_threats"]).To(BeTrue())
				Expect(revoked.Permissions["modify_threats"]).To(BeFalse())

				u, err := repo.FindByEmail(ctx, "a@x.it")
				Expect(err).NotTo(HaveOccurred())
				Expect(u.Permissions).To(Equal(int(permission.ReadThreats)))
			})

			It("forbids users without the grant bit", func() {
				w := do(http.MethodPost, "/users/admin@x.it/permissions/grant",
					`{"permissions":["read_users"]}`, "Authorization", "Bearer "+token)
				Expect(w.Code).To(Equal(http.StatusForbidden))
			})

			It("rejects unknown permission names", func() {
				w := do(http.MethodPost, "/users/a@x.it/permissions/grant",
					`{"permissions":["launch_rockets"]}`, "Authorization", "Bearer "+adminToken)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
			})

			It("reports an absent user", func() {
				w := do(http.MethodPost, "/users/ghost@x.it/permissions/grant",
					`{"permissions":["read_users"]}`, "Authorization", "Bearer "+adminToken)
				Expect(w.Code).To(Equal(http.StatusNotFound))
				Expect(decodeDetail(w)).To(Equal("User not found"))
			})
		})
	})
})
