package mongodb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsDuplicateKeyError(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "write exception with duplicate key",
			err: mongo.WriteException{
				WriteErrors: mongo.WriteErrors{
					{Code: duplicateKeyCode, Message: "E11000 duplicate key error"},
				},
			},
			want: true,
		},
		{
			name: "write exception with another error",
			err: mongo.WriteException{
				WriteErrors: mongo.WriteErrors{
					{Code: 121, Message: "Document failed validation"},
				},
			},
		},
		{
			name: "command error with duplicate key",
			err:  mongo.CommandError{Code: duplicateKeyCode},
			want: true,
		},
		{
			name: "command error with another error",
			err:  mongo.CommandError{Code: 13},
		},
		{
			name: "no documents",
			err:  mongo.ErrNoDocuments,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			require.Equal(t, testCase.want, isDuplicateKeyError(testCase.err))
		})
	}
}
