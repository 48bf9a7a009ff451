package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/suitec-go-api/internal/dto"
	"github.com/noah-isme/suitec-go-api/internal/models"
	"github.com/noah-isme/suitec-go-api/internal/repository"
)

// ledgerHarness wires the real repositories and services over a private in-memory database.
type ledgerHarness struct {
	t      *testing.T
	ctx    context.Context
	db     *gorm.DB
	course models.Course

	activityRepo repository.ActivityRepository
	userRepo     repository.UserRepository
	courseRepo   repository.CourseRepository
	assetRepo    repository.AssetRepository
	commentRepo  repository.CommentRepository
	categoryRepo repository.CategoryRepository

	registry     ActivityTypeService
	points       PointsService
	ledger       ActivityService
	scores       ScoreService
	interactions InteractionService
	comments     CommentService
}

func newLedgerHarness(t *testing.T) *ledgerHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	course := models.Course{CanvasAPIDomain: "bcourses.example.edu", CanvasCourseID: 1234, Name: "Rhetoric 10", Active: true}
	require.NoError(t, db.Create(&course).Error)

	logger := zerolog.Nop()
	h := &ledgerHarness{
		t:            t,
		ctx:          context.Background(),
		db:           db,
		course:       course,
		activityRepo: repository.NewActivityRepository(db),
		userRepo:     repository.NewUserRepository(db),
		courseRepo:   repository.NewCourseRepository(db),
		assetRepo:    repository.NewAssetRepository(db),
		commentRepo:  repository.NewCommentRepository(db),
		categoryRepo: repository.NewCategoryRepository(db),
	}
	h.registry = NewActivityTypeService(repository.NewActivityTypeRepository(db), nil, nil, logger)
	h.points = NewPointsService(h.userRepo, h.activityRepo, nil, logger)
	h.ledger = NewActivityService(h.activityRepo, h.userRepo, h.courseRepo, h.registry, h.points, nil, logger)
	h.scores = NewScoreService(h.activityRepo, h.assetRepo, h.courseRepo, h.registry, nil, nil, 0, logger)
	h.interactions = NewInteractionService(h.assetRepo, repository.NewInteractionRepository(db), h.ledger, h.scores, logger)
	h.comments = NewCommentService(h.commentRepo, h.assetRepo, h.ledger, h.scores, nil, logger)
	return h
}

func (h *ledgerHarness) user(canvasID int64) models.User {
	h.t.Helper()
	user := models.User{
		CourseID:              h.course.ID,
		CanvasUserID:          canvasID,
		CanvasFullName:        fmt.Sprintf("Member %d", canvasID),
		CanvasEnrollmentState: models.EnrollmentActive,
	}
	require.NoError(h.t, h.db.Create(&user).Error)
	return user
}

func (h *ledgerHarness) admin(canvasID int64) models.User {
	h.t.Helper()
	user := h.user(canvasID)
	require.NoError(h.t, h.db.Model(&user).Update("is_admin", true).Error)
	user.IsAdmin = true
	return user
}

func (h *ledgerHarness) asset(assetType string, owners ...models.User) models.Asset {
	h.t.Helper()
	ownerIDs := make([]uint, 0, len(owners))
	for _, owner := range owners {
		ownerIDs = append(ownerIDs, owner.ID)
	}
	asset := models.Asset{CourseID: h.course.ID, Type: assetType, Title: "Primary source", Source: models.AssetSourceManual, Visible: true}
	require.NoError(h.t, h.assetRepo.Create(h.ctx, &asset, ownerIDs, nil))
	return asset
}

func (h *ledgerHarness) caller(user models.User) Caller {
	return Caller{UserID: user.ID, CourseID: h.course.ID, IsAdmin: user.IsAdmin}
}

func (h *ledgerHarness) pointsOf(user models.User) int {
	h.t.Helper()
	stored, err := h.userRepo.GetByID(h.ctx, user.ID)
	require.NoError(h.t, err)
	return stored.Points
}

func (h *ledgerHarness) count(types ...models.ActivityType) int {
	h.t.Helper()
	activities, err := h.activityRepo.List(h.ctx, repository.ActivityFilter{CourseID: h.course.ID, Types: types})
	require.NoError(h.t, err)
	return len(activities)
}

func (h *ledgerHarness) countFor(user models.User, t models.ActivityType) int {
	h.t.Helper()
	userID := user.ID
	activities, err := h.activityRepo.List(h.ctx, repository.ActivityFilter{CourseID: h.course.ID, UserID: &userID, Types: []models.ActivityType{t}})
	require.NoError(h.t, err)
	return len(activities)
}

func (h *ledgerHarness) configure(admin models.User, updates ...dto.ActivityTypeUpdate) {
	h.t.Helper()
	_, err := h.registry.ApplyOverrides(h.ctx, h.caller(admin), h.course.ID, dto.ActivityTypeUpdateRequest{Updates: updates})
	require.NoError(h.t, err)
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }
