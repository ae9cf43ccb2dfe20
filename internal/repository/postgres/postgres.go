package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-api/internal/repository"
)

type userRepository struct {
	db *sqlx.DB
}

type patientProfileRepository struct {
	db *sqlx.DB
}

type connectionRepository struct {
	BaseRepository
	*connectionQueries
}

type scheduleRepository struct {
	BaseRepository
	*scheduleQueries
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func NewPatientProfileRepository(db *sqlx.DB) repository.PatientProfileRepository {
	return &patientProfileRepository{db: db}
}

func NewConnectionRepository(db *sqlx.DB) repository.ConnectionRepository {
	return &connectionRepository{
		BaseRepository:    NewBaseRepository(db),
		connectionQueries: &connectionQueries{q: db},
	}
}

func NewScheduleRepository(db *sqlx.DB) repository.ScheduleRepository {
	return &scheduleRepository{
		BaseRepository:  NewBaseRepository(db),
		scheduleQueries: &scheduleQueries{q: db},
	}
}
