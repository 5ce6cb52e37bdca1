package rewards

import (
	"testing"

	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("empty_server_url", func(t *testing.T) {
		_, err := New("", "token")
		should.Equal(t, ErrEmptyServerURL, err)
	})

	t.Run("configured", func(t *testing.T) {
		c, err := New("https://rewards.example.com", "token")
		must.Equal(t, nil, err)
		should.NotNil(t, c)
	})
}
