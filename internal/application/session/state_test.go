package session

import (
	"testing"
	"time"

	"landlease/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigate_HappyPath(t *testing.T) {
	st := Initial()
	assert.Equal(t, ScreenWelcome, st.Screen)
	assert.Equal(t, ModeLogin, st.Mode)

	st, err := st.Navigate(ScreenAuth, ModeRegister)
	require.NoError(t, err)
	assert.Equal(t, ModeRegister, st.Mode)

	st = st.SignIn("u1", "u1@example.com", false)
	assert.Equal(t, ScreenRole, st.Screen)

	st, err = st.Navigate(ScreenBuyer, "")
	require.NoError(t, err)
	st, err = st.Navigate(ScreenResults, "")
	require.NoError(t, err)
	st, err = st.Navigate(ScreenBuyer, "")
	require.NoError(t, err)
	assert.Equal(t, ScreenBuyer, st.Screen)
	assert.Equal(t, domain.Actor{UserID: "u1", Email: "u1@example.com"}, st.Actor())
}

func TestNavigate_Illegal(t *testing.T) {
	_, err := Initial().Navigate(ScreenSeller, "")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	auth, err := Initial().Navigate(ScreenAuth, "")
	require.NoError(t, err)
	_, err = auth.Navigate(ScreenRole, "")
	assert.True(t, domain.IsKind(err, domain.KindValidation), "role needs an identity")

	seller := State{Screen: ScreenSeller, Mode: ModeLogin, UserID: "u1"}
	_, err = seller.Navigate(ScreenBuyer, "")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestSignsOut(t *testing.T) {
	assert.True(t, State{Screen: ScreenRole}.SignsOut(ScreenWelcome))
	assert.True(t, State{Screen: ScreenSeller}.SignsOut(ScreenWelcome))
	assert.True(t, State{Screen: ScreenBuyer}.SignsOut(ScreenWelcome))
	assert.False(t, State{Screen: ScreenAuth}.SignsOut(ScreenWelcome))
	assert.False(t, State{Screen: ScreenBuyer}.SignsOut(ScreenResults))

	out := State{Screen: ScreenSeller, Mode: ModeRegister, UserID: "u1"}.SignOut()
	assert.Equal(t, State{Screen: ScreenWelcome, Mode: ModeRegister}, out)
}

func TestToggleMode(t *testing.T) {
	_, err := Initial().ToggleMode()
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	st := State{Screen: ScreenAuth, Mode: ModeLogin}
	st, err = st.ToggleMode()
	require.NoError(t, err)
	assert.Equal(t, ModeRegister, st.Mode)
	st, err = st.ToggleMode()
	require.NoError(t, err)
	assert.Equal(t, ModeLogin, st.Mode)
}

func TestParse(t *testing.T) {
	sc, err := ParseScreen("results")
	require.NoError(t, err)
	assert.Equal(t, ScreenResults, sc)
	_, err = ParseScreen("admin")
	assert.Error(t, err)

	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Mode(""), m)
	_, err = ParseMode("signup")
	assert.Error(t, err)
}

func TestMapRoundTrip(t *testing.T) {
	st := State{Screen: ScreenBuyer, Mode: ModeRegister, UserID: "anon-1", Anonymous: true}
	assert.Equal(t, st, FromMap(st.ToMap()))
	assert.Equal(t, Initial(), FromMap(nil))
	assert.Equal(t, Initial(), FromMap(map[string]interface{}{"screen": "nowhere"}))
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	ch1, cancel1 := b.Subscribe(4)
	ch2, cancel2 := b.Subscribe(1)
	defer cancel1()

	b.Publish(IdentityChange{UserID: "u1", SignedIn: true})
	b.Publish(IdentityChange{UserID: "u1", SignedIn: false})

	first := <-ch1
	assert.Equal(t, "u1", first.UserID)
	assert.True(t, first.SignedIn)
	assert.False(t, first.At.IsZero())
	second := <-ch1
	assert.False(t, second.SignedIn)

	// buffer of one: the second change was dropped, not blocked on
	got := <-ch2
	assert.True(t, got.SignedIn)
	select {
	case <-ch2:
		t.Fatal("expected dropped change")
	case <-time.After(10 * time.Millisecond):
	}

	cancel2()
	cancel2()
	_, open := <-ch2
	assert.False(t, open)
	b.Publish(IdentityChange{UserID: "u2", SignedIn: true})
	assert.Equal(t, "u2", (<-ch1).UserID)
}
