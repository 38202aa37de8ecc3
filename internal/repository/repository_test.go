package repository

import (
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/proptrust/proptrust/constants"
	"github.com/proptrust/proptrust/internal/common"
	"github.com/proptrust/proptrust/internal/entity"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(Config{Backend: "sqlite", Path: ":memory:"}, nil)
	require.NoError(t, err)
	return db
}

func sampleRun(propertyID string) (entity.Property, entity.VerificationRecord, entity.VerificationDetail) {
	now := time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC)
	vid := uuid.New()
	fpSum := sha256.Sum256([]byte(propertyID))
	prop := entity.Property{
		PropertyID:   propertyID,
		DocumentType: constants.DocTypeRTC,
		OwnerName:    "RAVI KUMAR",
		SurveyNumber: "45/2A",
		CreatedAt:    now,
	}
	rec := entity.VerificationRecord{
		VerificationID:           vid,
		PropertyID:               propertyID,
		RiskScore:                30,
		RiskLevel:                constants.RiskLow,
		ClassificationLabel:      constants.LabelLoanDetected,
		ClassificationConfidence: 0.9,
		Fingerprint:              fpSum[:],
		CreatedAt:                now,
	}
	det := entity.VerificationDetail{
		VerificationID: vid,
		Entities: entity.EntityBundle{
			Owner:        "RAVI KUMAR",
			SurveyNumber: "45/2A",
			Loans:        []entity.Loan{{Amount: 500000, Bank: "State Bank of India"}},
		},
		CleanedPreview: "Owner: RAVI KUMAR Survey No. 45/2A",
		OCRStats:       entity.OCRStats{PagesProcessed: 1, CharsOriginal: 120, CharsCleaned: 100},
		Factors:        []entity.RiskFactor{{Code: "loan_present", Weight: 30, Description: "loan"}},
	}
	return prop, rec, det
}

func TestInsertRunAndReadBack(t *testing.T) {
	db := openTestDB(t)
	repo := NewVerificationRepository(db, nil)
	ctx := context.Background()

	prop, rec, det := sampleRun("PRT-1")
	require.NoError(t, repo.InsertRun(ctx, prop, rec, det))

	gotRec, gotDet, err := repo.LatestByProperty(ctx, "PRT-1")
	require.NoError(t, err)
	assert.Equal(t, rec.VerificationID, gotRec.VerificationID)
	assert.Equal(t, rec.Fingerprint, gotRec.Fingerprint)
	assert.Equal(t, constants.RiskLow, gotRec.RiskLevel)
	assert.Nil(t, gotRec.AnchorReference)
	assert.Equal(t, "RAVI KUMAR", gotDet.Entities.Owner)
	require.Len(t, gotDet.Entities.Loans, 1)
	assert.Equal(t, int64(500000), gotDet.Entities.Loans[0].Amount)
}

func TestSecondRunBecomesLatest(t *testing.T) {
	db := openTestDB(t)
	repo := NewVerificationRepository(db, nil)
	ctx := context.Background()

	prop, rec1, det1 := sampleRun("PRT-1")
	require.NoError(t, repo.InsertRun(ctx, prop, rec1, det1))

	_, rec2, det2 := sampleRun("PRT-1")
	rec2.CreatedAt = rec1.CreatedAt.Add(time.Minute)
	rec2.RiskScore = 45
	rec2.RiskLevel = constants.RiskMedium
	require.NoError(t, repo.InsertRun(ctx, prop, rec2, det2))

	gotRec, _, err := repo.LatestByProperty(ctx, "PRT-1")
	require.NoError(t, err)
	assert.Equal(t, rec2.VerificationID, gotRec.VerificationID)
	assert.Equal(t, 45, gotRec.RiskScore)
}

func TestSetAnchor(t *testing.T) {
	db := openTestDB(t)
	repo := NewVerificationRepository(db, nil)
	ctx := context.Background()

	prop, rec, det := sampleRun("PRT-1")
	require.NoError(t, repo.InsertRun(ctx, prop, rec, det))

	ts := time.Date(2026, 8, 5, 11, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetAnchor(ctx, rec.VerificationID, "0xabc", 1_000_001, ts))

	gotRec, _, err := repo.LatestByProperty(ctx, "PRT-1")
	require.NoError(t, err)
	require.NotNil(t, gotRec.AnchorReference)
	assert.Equal(t, "0xabc", *gotRec.AnchorReference)
	require.NotNil(t, gotRec.AnchorBlockHeight)
	assert.Equal(t, int64(1_000_001), *gotRec.AnchorBlockHeight)
}

func TestSetAnchorUnknownRecord(t *testing.T) {
	db := openTestDB(t)
	repo := NewVerificationRepository(db, nil)
	err := repo.SetAnchor(context.Background(), uuid.New(), "0xabc", 1, time.Now())
	require.Error(t, err)
	assert.Equal(t, common.KindNotFound, common.KindOf(err))
}

func TestLatestByPropertyNotFound(t *testing.T) {
	db := openTestDB(t)
	repo := NewVerificationRepository(db, nil)
	_, _, err := repo.LatestByProperty(context.Background(), "PRT-none")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCascadeDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	verifications := NewVerificationRepository(db, nil)
	tampers := NewTamperRepository(db, nil)

	prop, rec, det := sampleRun("PRT-1")
	require.NoError(t, verifications.InsertRun(ctx, prop, rec, det))
	require.NoError(t, tampers.Insert(ctx, entity.TamperCheck{
		TamperCheckID: uuid.New(),
		PropertyID:    "PRT-1",
		Status:        constants.TamperVerified,
		HashMatched:   true,
		CreatedAt:     time.Now().UTC(),
	}))

	found, err := verifications.DeleteByProperty(ctx, "PRT-1")
	require.NoError(t, err)
	assert.True(t, found)

	_, _, err = verifications.LatestByProperty(ctx, "PRT-1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	checks, err := tampers.ListByProperty(ctx, "PRT-1", 10)
	require.NoError(t, err)
	assert.Empty(t, checks)

	var count int64
	require.NoError(t, db.Model(&verificationDetailRow{}).Where("property_id = ?", "PRT-1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteUnknownProperty(t *testing.T) {
	db := openTestDB(t)
	repo := NewVerificationRepository(db, nil)
	found, err := repo.DeleteByProperty(context.Background(), "PRT-none")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAuditAppendAndList(t *testing.T) {
	db := openTestDB(t)
	audits := NewAuditRepository(db, nil)
	ctx := context.Background()

	audits.Append(ctx, constants.OpVerify, "PRT-1", constants.AuditSuccess, "verified")
	audits.Append(ctx, constants.OpTamperCheck, "PRT-1", constants.AuditFailure, "mismatch")
	audits.Append(ctx, constants.OpVerify, "PRT-2", constants.AuditSuccess, "verified")

	all, err := audits.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := audits.ListRecent(ctx, "PRT-1", 10)
	require.NoError(t, err)
	assert.Len(t, scoped, 2)
	for _, log := range scoped {
		assert.Equal(t, "PRT-1", log.PropertyID)
	}
}

func TestStatistics(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	verifications := NewVerificationRepository(db, nil)
	stats := NewStatsRepository(db, nil)

	prop1, rec1, det1 := sampleRun("PRT-1")
	require.NoError(t, verifications.InsertRun(ctx, prop1, rec1, det1))

	prop2, rec2, det2 := sampleRun("PRT-2")
	rec2.PropertyID = "PRT-2"
	rec2.RiskScore = 70
	rec2.RiskLevel = constants.RiskHigh
	require.NoError(t, verifications.InsertRun(ctx, prop2, rec2, det2))

	got, err := stats.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Properties)
	assert.Equal(t, int64(2), got.Verifications)
	assert.Equal(t, int64(1), got.RiskBuckets[string(constants.RiskLow)])
	assert.Equal(t, int64(1), got.RiskBuckets[string(constants.RiskHigh)])
}
