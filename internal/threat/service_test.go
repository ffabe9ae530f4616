package threat_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/frahmantamala/leaf/internal"
	"github.com/frahmantamala/leaf/internal/threat"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockCategoryRepository implements threat.CategoryRepository for testing
type MockCategoryRepository struct {
	categories map[string]*threat.Category
	nextID     int64
	failError  error
}

func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{categories: make(map[string]*threat.Category)}
}

func (m *MockCategoryRepository) List(context.Context) ([]threat.Category, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	out := make([]threat.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (m *MockCategoryRepository) FindByID(_ context.Context, id int64) (*threat.Category, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *MockCategoryRepository) FindByName(_ context.Context, name string) (*threat.Category, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	return m.categories[name], nil
}

func (m *MockCategoryRepository) Create(_ context.Context, name string) (*threat.Category, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	if _, ok := m.categories[name]; ok {
		return nil, threat.ErrDuplicateCategory
	}
	m.nextID++
	c := &threat.Category{ID: m.nextID, Name: name}
	m.categories[name] = c
	return c, nil
}

// MockThreatRepository implements threat.ThreatRepository for testing
type MockThreatRepository struct {
	threats []threat.Threat
}

func (m *MockThreatRepository) List(_ context.Context, categoryID int64) ([]threat.Threat, error) {
	var out []threat.Threat
	for _, t := range m.threats {
		if categoryID == 0 || t.CategoryID == categoryID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockThreatRepository) FindByID(_ context.Context, id int64) (*threat.Threat, error) {
	for i := range m.threats {
		if m.threats[i].ID == id {
			return &m.threats[i], nil
		}
	}
	return nil, nil
}

func (m *MockThreatRepository) Create(_ context.Context, t *threat.Threat) error {
	t.ID = int64(len(m.threats) + 1)
	m.threats = append(m.threats, *t)
	return nil
}

func ptr(f float64) *float64 { return &f }

var _ = Describe("Threat Service", func() {
	var (
		ctx        context.Context
		categories *MockCategoryRepository
		threats    *MockThreatRepository
		service    *threat.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		categories = NewMockCategoryRepository()
		threats = &MockThreatRepository{}
		service = threat.NewService(categories, threats, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	Describe("CreateCategory", func() {
		It("trims the name before storing it", func() {
			c, err := service.CreateCategory(ctx, "  noise  ")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Name).To(Equal("noise"))
		})

		It("maps a duplicate to a conflict", func() {
			_, err := service.CreateCategory(ctx, "noise")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateCategory(ctx, "noise")
			Expect(err).To(MatchError(internal.ErrCategoryTaken))
		})

		It("wraps repository failures", func() {
			categories.failError = errors.New("connection reset")
			_, err := service.CreateCategory(ctx, "noise")
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
			_, isApp := internal.IsAppError(err)
			Expect(isApp).To(BeFalse())
		})
	})

	Describe("CreateThreat", func() {
		It("stores the point with its category", func() {
			c, err := service.CreateCategory(ctx, "air pollution")
			Expect(err).NotTo(HaveOccurred())

			t, err := service.CreateThreat(ctx, threat.CreateThreatRequest{
				Latitude: ptr(0), Longitude: ptr(-180), CategoryID: c.ID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(t.ID).To(Equal(int64(1)))
			Expect(t.Latitude).To(BeZero())
			Expect(t.Longitude).To(Equal(-180.0))
			Expect(t.Category.Name).To(Equal("air pollution"))
		})

		It("fails for an unknown category", func() {
			_, err := service.CreateThreat(ctx, threat.CreateThreatRequest{
				Latitude: ptr(1), Longitude: ptr(1), CategoryID: 42,
			})
			Expect(err).To(MatchError(internal.ErrCategoryNotFound))
			Expect(threats.threats).To(BeEmpty())
		})
	})

	Describe("GetThreat", func() {
		It("returns not found for a missing id", func() {
			_, err := service.GetThreat(ctx, 7)
			Expect(err).To(MatchError(internal.ErrThreatNotFound))
		})
	})

	Describe("ListThreats", func() {
		It("filters by category and never returns nil", func() {
			empty, err := service.ListThreats(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(empty).NotTo(BeNil())
			Expect(empty).To(BeEmpty())

			a, _ := service.CreateCategory(ctx, "a")
			b, _ := service.CreateCategory(ctx, "b")
			_, err = service.CreateThreat(ctx, threat.CreateThreatRequest{Latitude: ptr(1), Longitude: ptr(1), CategoryID: a.ID})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.CreateThreat(ctx, threat.CreateThreatRequest{Latitude: ptr(2), Longitude: ptr(2), CategoryID: b.ID})
			Expect(err).NotTo(HaveOccurred())

			only, err := service.ListThreats(ctx, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(only).To(HaveLen(1))
			Expect(only[0].Category.Name).To(Equal("b"))
		})
	})
})
