package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/events"
	"github.com/eratosthenes-game/server/internal/v1/geo"
	"github.com/eratosthenes-game/server/internal/v1/registry"
	"github.com/eratosthenes-game/server/internal/v1/room"
	"github.com/eratosthenes-game/server/internal/v1/uploads"
)

var testKey = []byte("test-signing-key")

type fixture struct {
	router    *gin.Engine
	engine    *room.Engine
	sockets   *registry.Registry
	passcodes *auth.Passcodes
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sockets := registry.New()
	engine := room.NewEngine(room.NewStore(), sockets, geo.NewLocations([]geo.LatLng{{Lat: 48.8566, Lng: 2.3522}}))
	engine.TickInterval = time.Millisecond
	engine.DisconnectGrace = 10 * time.Millisecond
	passcodes := auth.NewPasscodes(testKey)

	router := gin.New()
	NewHandler(engine, passcodes, nil).Register(router)
	return &fixture{router: router, engine: engine, sockets: sockets, passcodes: passcodes}
}

func (f *fixture) request(t *testing.T, method, path, passcode string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if passcode != "" {
		req.Header.Set(PasscodeHeader, passcode)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// joinMember puts an identity into a room the way the WebSocket path would.
func (f *fixture) joinMember(t *testing.T, roomID, name string) (auth.Identity, string) {
	t.Helper()
	identity, passcode, err := f.passcodes.Issue()
	require.NoError(t, err)
	socketID, _ := f.sockets.Add()
	require.NoError(t, f.engine.Connect(context.Background(), roomID, identity,
		events.BriefUserInfoPayload{Username: name, AvatarEmoji: "🌍"}, socketID))
	return identity, passcode
}

func TestAuthMiddleware(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "noPasscodeHeaderProvided", decodeBody(t, rec)["reason"])

	rec = f.request(t, http.MethodPost, "/rooms", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalidPasscode", decodeBody(t, rec)["reason"])
}

func TestIssueAndDecodePasscode(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/auth/passcode", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["error"])
	passcode := body["passcode"].(string)
	publicID := body["publicId"].(string)
	assert.True(t, auth.UserIDIsValid(publicID))

	rec = f.request(t, http.MethodGet, "/auth/passcode/decode", passcode, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, publicID, decodeBody(t, rec)["publicId"])
}

func TestCreateRoomAndCanConnect(t *testing.T) {
	f := newFixture(t)
	_, passcode, err := f.passcodes.Issue()
	require.NoError(t, err)

	rec := f.request(t, http.MethodPost, "/rooms", passcode, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roomID := decodeBody(t, rec)["roomId"].(string)
	require.Len(t, roomID, 10)

	rec = f.request(t, http.MethodGet, "/rooms/"+roomID+"/can-connect?username=alice", passcode, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["canConnect"])

	rec = f.request(t, http.MethodGet, "/rooms/missing123/can-connect?username=alice", passcode, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["canConnect"])
	assert.Equal(t, "roomNotFound", body["errorCode"])
}

func TestAmIHost(t *testing.T) {
	f := newFixture(t)
	roomID := f.engine.CreateRoom()
	_, hostPasscode := f.joinMember(t, roomID, "alice")
	_, guestPasscode := f.joinMember(t, roomID, "bob")

	rec := f.request(t, http.MethodGet, "/rooms/"+roomID+"/am-i-host", hostPasscode, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["isHost"])

	rec = f.request(t, http.MethodGet, "/rooms/"+roomID+"/am-i-host", guestPasscode, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["isHost"])
}

func TestGuessEndpoints(t *testing.T) {
	f := newFixture(t)
	roomID := f.engine.CreateRoom()
	_, alicePass := f.joinMember(t, roomID, "alice")
	bobIdentity, bobPass := f.joinMember(t, roomID, "bob")

	rec := f.request(t, http.MethodPost, "/rooms/"+roomID+"/save-guess", alicePass,
		map[string]float64{"lat": 48.8566, "lng": 2.3522})
	require.Equal(t, http.StatusOK, rec.Code)

	users, _, err := f.engine.Users(roomID)
	require.NoError(t, err)
	var alice room.UserInfo
	for _, u := range users {
		if u.Name == "alice" {
			alice = u
		}
	}
	require.NotNil(t, alice.LastGuess)
	assert.False(t, alice.SubmittedGuess)

	// Submitting outside a round keeps the flag down.
	rec = f.request(t, http.MethodPost, "/rooms/"+roomID+"/submit-guess", bobPass,
		map[string]float64{"lat": 1, "lng": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	users, _, err = f.engine.Users(roomID)
	require.NoError(t, err)
	for _, u := range users {
		if u.PublicID == bobIdentity.PublicID {
			assert.False(t, u.SubmittedGuess)
		}
	}

	rec = f.request(t, http.MethodPost, "/rooms/"+roomID+"/revoke-guess", bobPass, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/rooms/"+roomID+"/save-guess", bytes.NewReader([]byte("{")))
	req.Header.Set(PasscodeHeader, alicePass)
	mal := httptest.NewRecorder()
	f.router.ServeHTTP(mal, req)
	assert.Equal(t, http.StatusBadRequest, mal.Code)
}

func TestUsersAndMessages(t *testing.T) {
	f := newFixture(t)
	roomID := f.engine.CreateRoom()
	aliceIdentity, alicePass := f.joinMember(t, roomID, "alice")
	require.NoError(t, f.engine.Chat(context.Background(), roomID, aliceIdentity.PrivateID,
		events.ChatMessagePayload{Content: "hello"}))

	rec := f.request(t, http.MethodGet, "/rooms/"+roomID+"/users", alicePass, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var usersBody struct {
		Error  bool `json:"error"`
		Users  []struct {
			PublicID    string `json:"publicId"`
			Name        string `json:"name"`
			IsHost      bool   `json:"isHost"`
			Description string `json:"description"`
		} `json:"users"`
		Status struct {
			Type string `json:"type"`
		} `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usersBody))
	require.Len(t, usersBody.Users, 1)
	assert.Equal(t, "alice", usersBody.Users[0].Name)
	assert.True(t, usersBody.Users[0].IsHost)
	assert.NotEmpty(t, usersBody.Users[0].Description)
	assert.Equal(t, "waiting", usersBody.Status.Type)

	rec = f.request(t, http.MethodGet, "/rooms/"+roomID+"/messages", alicePass, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var messagesBody struct {
		Messages []struct {
			Type    string `json:"type"`
			Content any    `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &messagesBody))
	require.Len(t, messagesBody.Messages, 2)
	assert.Equal(t, "fromBot", messagesBody.Messages[0].Type)
	assert.Equal(t, "fromPlayer", messagesBody.Messages[1].Type)

	rec = f.request(t, http.MethodGet, "/rooms/missing123/users", alicePass, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "roomNotFound", decodeBody(t, rec)["errorCode"])
}

func TestModerationEndpoints(t *testing.T) {
	f := newFixture(t)
	roomID := f.engine.CreateRoom()
	_, hostPass := f.joinMember(t, roomID, "alice")
	bobIdentity, bobPass := f.joinMember(t, roomID, "bob")

	// Non-host refused.
	rec := f.request(t, http.MethodGet, "/rooms/"+roomID+"/users/"+bobIdentity.PublicID+"/mute", bobPass, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "youAreNotTheHost", decodeBody(t, rec)["errorCode"])

	rec = f.request(t, http.MethodGet, "/rooms/"+roomID+"/users/"+bobIdentity.PublicID+"/mute", hostPass, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.request(t, http.MethodGet, "/rooms/"+roomID+"/users/"+bobIdentity.PublicID+"/unmute", hostPass, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodPost, "/rooms/"+roomID+"/users/"+bobIdentity.PublicID+"/change-score", hostPass,
		map[string]int64{"amount": 250})
	require.Equal(t, http.StatusOK, rec.Code)
	users, _, err := f.engine.Users(roomID)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), users[0].Score)
	assert.Equal(t, bobIdentity.PublicID, users[0].PublicID)

	rec = f.request(t, http.MethodPost, "/rooms/"+roomID+"/users/"+bobIdentity.PublicID+"/ban", hostPass, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users, _, err = f.engine.Users(roomID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Name)
}

func TestUploadsDisabled(t *testing.T) {
	f := newFixture(t)
	_, passcode, err := f.passcodes.Issue()
	require.NoError(t, err)

	rec := f.request(t, http.MethodPost, "/uploads/attachment-links", passcode,
		map[string][]string{"attachmentIds": {"abc"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["error"])
}

// stubUploader records uploads and presigns deterministic URLs.
type stubUploader struct {
	uploaded [][]byte
}

func (s *stubUploader) Enabled() bool { return true }

func (s *stubUploader) UploadImage(_ context.Context, data []byte) (string, error) {
	s.uploaded = append(s.uploaded, data)
	return fmt.Sprintf("img-%d", len(s.uploaded)), nil
}

func (s *stubUploader) AttachmentLinks(_ context.Context, ids []string) ([]uploads.Links, error) {
	links := make([]uploads.Links, 0, len(ids))
	for _, id := range ids {
		links = append(links, uploads.Links{
			ID:      id,
			Full:    "https://img.test/" + id,
			Preview: "https://img.test/" + id + "-preview",
		})
	}
	return links, nil
}

func newUploadFixture(t *testing.T) (*gin.Engine, *stubUploader, string) {
	t.Helper()
	f := newFixture(t)
	stub := &stubUploader{}
	router := gin.New()
	NewHandler(f.engine, f.passcodes, stub).Register(router)
	_, passcode, err := f.passcodes.Issue()
	require.NoError(t, err)
	return router, stub, passcode
}

func TestUploadImage_StoresEveryMultipartField(t *testing.T) {
	router, stub, passcode := newUploadFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range map[string]string{"first": "png-bytes-a", "second": "png-bytes-b"} {
		part, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(PasscodeHeader, passcode)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Error    bool     `json:"error"`
		ImageIDs []string `json:"imageIds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Error)
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, body.ImageIDs)
	assert.Len(t, stub.uploaded, 2)
}

func TestUploadImage_EmptyFormIsRejected(t *testing.T) {
	router, stub, passcode := newUploadFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(PasscodeHeader, passcode)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.uploaded)
}

func TestGetAttachmentLinks_FullAndPreviewPerID(t *testing.T) {
	router, _, passcode := newUploadFixture(t)

	raw, err := json.Marshal(map[string][]string{"attachmentIds": {"img-1", "img-2"}})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/uploads/attachment-links", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(PasscodeHeader, passcode)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Links []struct {
			ID      string `json:"id"`
			Full    string `json:"full"`
			Preview string `json:"preview"`
		} `json:"links"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Links, 2)
	assert.Equal(t, "img-1", body.Links[0].ID)
	assert.Equal(t, "https://img.test/img-1", body.Links[0].Full)
	assert.Equal(t, "https://img.test/img-1-preview", body.Links[0].Preview)
}
