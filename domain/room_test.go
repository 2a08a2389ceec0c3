package domain

import (
	"testing"

	"direct-chat/errors"

	"github.com/stretchr/testify/require"
)

func TestResolveRoomKey_Commutative(t *testing.T) {
	req := require.New(t)

	// Given two identities in both call orders
	first, err := ResolveRoomKey("alice", "bob")
	req.NoError(err)
	second, err := ResolveRoomKey("bob", "alice")
	req.NoError(err)

	// Then both participants converge on the same key
	req.Equal(first, second)
	req.Equal(RoomKey("alice_bob"), first)
}

func TestResolveRoomKey_Deterministic(t *testing.T) {
	req := require.New(t)

	for i := 0; i < 10; i++ {
		key, err := ResolveRoomKey("zoe", "adam")
		req.NoError(err)
		req.Equal(RoomKey("adam_zoe"), key)
	}
}

func TestResolveRoomKey_SelfChat(t *testing.T) {
	req := require.New(t)

	// A user opening a conversation with themselves is a valid pair
	key, err := ResolveRoomKey("alice", "alice")
	req.NoError(err)
	req.Equal(RoomKey("alice_alice"), key)
}

func TestResolveRoomKey_RejectsInvalidIdentity(t *testing.T) {
	cases := []struct {
		name string
		a, b Identity
	}{
		{"empty first", "", "bob"},
		{"empty second", "alice", ""},
		{"separator in first", "al_ice", "bob"},
		{"separator in second", "alice", "b_ob"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			_, err := ResolveRoomKey(tc.a, tc.b)
			req.ErrorIs(err, errors.ErrInvalidIdentity)
		})
	}
}

func TestRoomKey_Members(t *testing.T) {
	req := require.New(t)

	key, err := ResolveRoomKey("carol", "bob")
	req.NoError(err)

	members := key.Members()
	req.Len(members, 2)
	req.Equal(Identity("bob"), members[0])
	req.Equal(Identity("carol"), members[1])

	req.True(key.Contains("bob"))
	req.True(key.Contains("carol"))
	req.False(key.Contains("mallory"))
}
