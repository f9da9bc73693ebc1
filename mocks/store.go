package mocks

import (
	"stridepoints/app/storage/models"
	"time"

	"github.com/stretchr/testify/mock"
)

type Store struct {
	mock.Mock
}

func (m *Store) Connect(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *Store) GetAllUsers() ([]*models.User, error) {
	args := m.Called()
	users, _ := args.Get(0).([]*models.User)
	return users, args.Error(1)
}

func (m *Store) GetUserById(id int64) (*models.User, error) {
	args := m.Called(id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *Store) GetUserByStravaId(stravaId int64) (*models.User, error) {
	args := m.Called(stravaId)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *Store) UpsertUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *Store) UpdateUserTokens(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *Store) ClearUserTokens(userId int64) error {
	args := m.Called(userId)
	return args.Error(0)
}

func (m *Store) GetActivity(userId, stravaActivityId int64) (*models.Activity, error) {
	args := m.Called(userId, stravaActivityId)
	activity, _ := args.Get(0).(*models.Activity)
	return activity, args.Error(1)
}

func (m *Store) UpsertActivity(activity *models.Activity) error {
	args := m.Called(activity)
	return args.Error(0)
}

func (m *Store) DeleteActivity(userId, stravaActivityId int64) error {
	args := m.Called(userId, stravaActivityId)
	return args.Error(0)
}

func (m *Store) GetChallengeActivities(userId int64, types []string, start, end time.Time) ([]models.Activity, error) {
	args := m.Called(userId, types, start, end)
	activities, _ := args.Get(0).([]models.Activity)
	return activities, args.Error(1)
}
