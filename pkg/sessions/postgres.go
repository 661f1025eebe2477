package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/normalizer"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionRow is the persistence model. Feature snapshots and contributions
// are stored as JSON documents so new or renamed fields need no migration.
type SessionRow struct {
	ID           string         `gorm:"primaryKey;column:id"`
	Seq          int64          `gorm:"column:seq;autoIncrement;index"`
	CreatedAt    time.Time      `gorm:"column:created_at;index"`
	ModelVersion string         `gorm:"column:model_version"`
	PatientJSON  datatypes.JSON `gorm:"column:patient_json;type:jsonb"`
	RiskLabel    string         `gorm:"column:risk_label"`
	RiskScore    float64        `gorm:"column:risk_score"`
	ContribsJSON datatypes.JSON `gorm:"column:contribs_json;type:jsonb"`
}

// TableName overrides gorm naming.
func (SessionRow) TableName() string {
	return "prediction_sessions"
}

// PostgresStore is the durable Repository backed by gorm.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AutoMigrate() error {
	return s.db.AutoMigrate(&SessionRow{})
}

func (s *PostgresStore) Append(ctx context.Context, record models.SessionRecord) error {
	patient, err := json.Marshal(record.PatientFeatures)
	if err != nil {
		return fmt.Errorf("encode patient snapshot: %w", err)
	}
	contribs, err := json.Marshal(record.Contribs)
	if err != nil {
		return fmt.Errorf("encode contributions: %w", err)
	}

	row := SessionRow{
		ID:           record.ID,
		CreatedAt:    record.CreatedAt.UTC(),
		ModelVersion: record.ModelVersion,
		PatientJSON:  datatypes.JSON(patient),
		RiskLabel:    record.RiskLabel,
		RiskScore:    record.RiskScore,
		ContribsJSON: datatypes.JSON(contribs),
	}
	// redelivered archive events carry the same id
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return &PersistenceError{Store: "postgres", Err: err}
	}
	return nil
}

// Latest returns the most recent sessions up to n.
func (s *PostgresStore) Latest(ctx context.Context, n int) ([]models.SessionRecord, error) {
	if n <= 0 {
		return []models.SessionRecord{}, nil
	}
	var rows []SessionRow
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, &PersistenceError{Store: "postgres", Err: err}
	}

	out := make([]models.SessionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRecord())
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (row SessionRow) toRecord() models.SessionRecord {
	var patient map[string]interface{}
	_ = json.Unmarshal(row.PatientJSON, &patient)
	var contribs interface{}
	_ = json.Unmarshal(row.ContribsJSON, &contribs)

	return models.SessionRecord{
		ID:              row.ID,
		CreatedAt:       row.CreatedAt.UTC(),
		ModelVersion:    row.ModelVersion,
		PatientFeatures: models.FeaturesFromMap(patient),
		RiskLabel:       row.RiskLabel,
		RiskScore:       row.RiskScore,
		Contribs:        normalizer.Contributions(map[string]interface{}{"contribs": contribs}),
	}
}
