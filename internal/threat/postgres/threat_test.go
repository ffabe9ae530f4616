package postgres_test

import (
	"context"
	"testing"

	threatDatamodel "github.com/frahmantamala/leaf/internal/core/datamodel/threat"
	"github.com/frahmantamala/leaf/internal/threat"
	"github.com/frahmantamala/leaf/internal/threat/postgres"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestThreatPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Threat Postgres Suite")
}

var _ = Describe("Threat repositories", func() {
	var (
		ctx        context.Context
		categories *postgres.CategoryRepository
		threats    *postgres.ThreatRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&threatDatamodel.Category{}, &threatDatamodel.Threat{})).To(Succeed())

		categories = postgres.NewCategoryRepository(db)
		threats = postgres.NewThreatRepository(sqlx.NewDb(sqlDB, "sqlite3"))
	})

	Describe("CategoryRepository", func() {
		It("creates and lists categories by name", func() {
			_, err := categories.Create(ctx, "wildfire")
			Expect(err).NotTo(HaveOccurred())
			_, err = categories.Create(ctx, "illegal dumping")
			Expect(err).NotTo(HaveOccurred())

			all, err := categories.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].Name).To(Equal("illegal dumping"))
			Expect(all[0].DateFrom).NotTo(BeZero())
		})

		It("rejects a duplicate name", func() {
			_, err := categories.Create(ctx, "wildfire")
			Expect(err).NotTo(HaveOccurred())
			_, err = categories.Create(ctx, "wildfire")
			Expect(err).To(MatchError(threat.ErrDuplicateCategory))
		})

		It("returns nil for unknown ids", func() {
			c, err := categories.FindByID(ctx, 42)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).To(BeNil())
		})

		It("ensures a category only once", func() {
			first, created, err := categories.Ensure(ctx, "flood")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())
			second, created, err := categories.Ensure(ctx, "flood")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())
			Expect(second.ID).To(Equal(first.ID))
		})

		It("clears only unreferenced categories", func() {
			used, err := categories.Create(ctx, "used")
			Expect(err).NotTo(HaveOccurred())
			_, err = categories.Create(ctx, "unused")
			Expect(err).NotTo(HaveOccurred())
			Expect(threats.Create(ctx, &threatDatamodel.Threat{Latitude: 1, Longitude: 2, CategoryID: used.ID})).To(Succeed())

			n, err := categories.Clear(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			all, err := categories.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Name).To(Equal("used"))
		})
	})

	Describe("ThreatRepository", func() {
		var fire, dump *threatDatamodel.Category

		BeforeEach(func() {
			var err error
			fire, err = categories.Create(ctx, "wildfire")
			Expect(err).NotTo(HaveOccurred())
			dump, err = categories.Create(ctx, "illegal dumping")
			Expect(err).NotTo(HaveOccurred())
		})

		It("inserts a threat and reads it back with its category", func() {
			t := &threatDatamodel.Threat{Latitude: 52.23, Longitude: 21.01, CategoryID: fire.ID}
			Expect(threats.Create(ctx, t)).To(Succeed())
			Expect(t.ID).NotTo(BeZero())

			got, err := threats.FindByID(ctx, t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).NotTo(BeNil())
			Expect(got.Latitude).To(Equal(52.23))
			Expect(got.Longitude).To(Equal(21.01))
			Expect(got.Category.Name).To(Equal("wildfire"))
			Expect(got.DateTo).To(BeNil())
		})

		It("returns nil for an unknown id", func() {
			got, err := threats.FindByID(ctx, 99)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})

		It("filters by category", func() {
			Expect(threats.Create(ctx, &threatDatamodel.Threat{Latitude: 1, Longitude: 1, CategoryID: fire.ID})).To(Succeed())
			Expect(threats.Create(ctx, &threatDatamodel.Threat{Latitude: 2, Longitude: 2, CategoryID: dump.ID})).To(Succeed())
			Expect(threats.Create(ctx, &threatDatamodel.Threat{Latitude: 3, Longitude: 3, CategoryID: fire.ID})).To(Succeed())

			all, err := threats.List(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))

			fires, err := threats.List(ctx, fire.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fires).To(HaveLen(2))
			for _, t := range fires {
				Expect(t.Category.Name).To(Equal("wildfire"))
			}
		})
	})
})
