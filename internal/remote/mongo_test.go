package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestIndexModels_UserEmailSkipsBlank(t *testing.T) {
	models := indexModels()[Users]
	require.Len(t, models, 1)

	opts := models[0].Options
	require.NotNil(t, opts)
	require.NotNil(t, opts.Unique)
	assert.True(t, *opts.Unique)
	assert.Equal(t, bson.M{"email": bson.M{"$gt": ""}}, opts.PartialFilterExpression,
		"users without an email do not collide")
}

func TestIndexModels_PatientCedulaUniquePerTeam(t *testing.T) {
	models := indexModels()[Patients]
	require.Len(t, models, 1)
	assert.Equal(t, bson.D{{Key: "team_id", Value: 1}, {Key: "cedula", Value: 1}}, models[0].Keys)
	require.NotNil(t, models[0].Options.Unique)
	assert.True(t, *models[0].Options.Unique)
}
