package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/trezcool/maktaba/apps/api/echo"
	"github.com/trezcool/maktaba/core"
	"github.com/trezcool/maktaba/core/user"
	emailsvc "github.com/trezcool/maktaba/services/email"
	testutil "github.com/trezcool/maktaba/tests"
)

func Test_userApi_register(t *testing.T) {
	app := setup(t)

	register := func(t *testing.T, body []byte) *http.Response {
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		app.ServeHTTP(rec, req)
		return rec.Result()
	}
	decodeUser := func(t *testing.T, res *http.Response) user.User {
		var usr user.User
		if err := json.NewDecoder(res.Body).Decode(&usr); err != nil {
			t.Fatalf("decoding user failed: %v", err)
		}
		return usr
	}

	// the very first registrant becomes admin, no invite code needed
	res := register(t, marchallObj(t, user.RegisterUser{
		Email: "founder@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
	}))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("first registration failed! code = %v", res.StatusCode)
	}
	founder := decodeUser(t, res)
	if !founder.IsAdmin() {
		t.Errorf("first registered user must be admin; got roles %v", founder.Roles)
	}

	// subsequent registrations require an invite code
	res = register(t, marchallObj(t, user.RegisterUser{
		Email: "second@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123",
	}))
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("registration without code must fail! code = %v", res.StatusCode)
	}

	// unknown codes are rejected
	res = register(t, marchallObj(t, user.RegisterUser{
		Email: "second@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123", InviteCode: "AAAA1111",
	}))
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("registration with unknown code must fail! code = %v", res.StatusCode)
	}

	// a valid code registers a student...
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock())
	code, err := usrSvc.GenerateInviteCode(context.Background())
	if err != nil {
		t.Fatalf("GenerateInviteCode() failed: %v", err)
	}
	res = register(t, marchallObj(t, user.RegisterUser{
		Email: "second@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123", InviteCode: code.Code,
	}))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("registration with valid code failed! code = %v", res.StatusCode)
	}
	student := decodeUser(t, res)
	if !student.IsStudent() || student.IsAdmin() {
		t.Errorf("invited user must be a student; got roles %v", student.Roles)
	}

	// ...and the code is single-use
	res = register(t, marchallObj(t, user.RegisterUser{
		Email: "third@test.cd", Password: "LolC@t123", PasswordConfirm: "LolC@t123", InviteCode: code.Code,
	}))
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("redeemed code must be rejected! code = %v", res.StatusCode)
	}
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "LolC@t123", []string{user.RoleStudent}, nil, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "LolC@t123", []string{user.RoleStudent}, nil, false)

	tests := []httpTest{
		{
			name: "unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "bad password", body: marchallObj(t, echoapi.LoginRequest{Username: student.Username, Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "login with username", body: marchallObj(t, echoapi.LoginRequest{Username: student.Username, Password: "LolC@t123"}), wantCode: http.StatusOK},
		{name: "login with email", body: marchallObj(t, echoapi.LoginRequest{Username: student.Email, Password: "LolC@t123"}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	app := setup(t)

	path := func(search, ordering string, isActive *bool, roles []string, groups ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		for _, g := range groups {
			v.Add("group", g)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)

	usr1 := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "", nil, nil, true, now)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, []string{"2"}, true, t1)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, nil, true, t2)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, nil, false, t2)

	adminToken := getToken(t, admin)
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, usr1, student, admin, naughty)},
		{name: "search (unknown)", path: path("lol", "", nil, nil), token: adminToken, wantData: empty},
		{name: "search=HER", path: path("HER", "", nil, nil), token: adminToken, wantData: marchallList(t, student)},
		{name: "role (unknown)", path: path("", "", nil, []string{"lol"}), token: adminToken, wantData: empty},
		{name: "role=admin", path: path("", "", nil, []string{user.RoleAdmin}), token: adminToken, wantData: marchallList(t, admin)},
		{
			name: "role=student", path: path("", "", nil, []string{user.RoleStudent}),
			token: adminToken, wantData: marchallList(t, student, naughty),
		},
		{name: "group=2", path: path("", "", nil, nil, "2"), token: adminToken, wantData: marchallList(t, student)},
		{
			name: "is_active=true", path: path("", "", bPtr(true), nil),
			token: adminToken, wantData: marchallList(t, usr1, student, admin),
		},
		{name: "is_active=false", path: path("", "", bPtr(false), nil), token: adminToken, wantData: marchallList(t, naughty)},
		{
			name: "order by username", path: path("", "username", nil, nil), token: adminToken,
			wantData: marchallList(t, admin, usr1, student, naughty),
		},
		{
			name: "combo", path: path("o", "", bPtr(false), []string{user.RoleStudent}),
			token: adminToken, wantData: marchallList(t, naughty),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userRefreshToken(t *testing.T) {
	app := setup(t)

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, nil, false)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, nil, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   student.ID,
			Audience:  "Maktaba",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    student.IsStudent(),
		IsAdmin:      student.IsAdmin(),
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, nil, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: student.Name, Address: student.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent {
					if len(emailsvc.SentMessages) != 1 {
						t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
					}
					msg := emailsvc.SentMessages[0]
					if msg.To[0] != extra.to {
						t.Errorf("failed! To = %v; want %v", msg.To[0], extra.to)
					}
					if !strings.Contains(msg.TextContent, extra.to.Name) {
						t.Errorf("failed! text content does not contain recipient's name %q", extra.to.Name)
					}
				} else {
					if len(emailsvc.SentMessages) > 0 {
						t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
					}
				}
			}
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "lol", []string{user.RoleStudent}, nil, true)
	validUID := user.EncodeUID(student)
	validToken, err := user.MakeToken(student)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}

	// generate an expired token
	dayLate := core.Conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken, _ := user.MakeToken(student)
	user.NowFunc = time.Now // reset

	tests := []httpTest{
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: "bG9s", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{UID: "invalid value"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: expiredToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid value"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshedStudent, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedStudent.PasswordHash, student.PasswordHash) {
					t.Fatalf("failed to update new password")
				}
			}
		})
	}
}

func Test_userApi_toggleRole(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, nil, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, nil, true)
	adminToken := getToken(t, admin)

	toggle := func(t *testing.T, token, id, role string) *http.Response {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/"+id+"/toggle-role", token,
			marchallObj(t, echoapi.ToggleRoleRequest{Role: role}))
		app.ServeHTTP(rec, req)
		return rec.Result()
	}

	// admin only
	if res := toggle(t, getToken(t, student), student.ID, user.RoleInstructor); res.StatusCode != http.StatusForbidden {
		t.Errorf("non-admin toggle must fail! code = %v", res.StatusCode)
	}

	// unknown role names are rejected
	req, rec := newAuthRequest(http.MethodPost, "/v1/users/"+student.ID+"/toggle-role", adminToken,
		marchallObj(t, echoapi.ToggleRoleRequest{Role: "janitor"}))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
	}, rec)

	// grant
	res := toggle(t, adminToken, student.ID, user.RoleInstructor)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle failed! code = %v", res.StatusCode)
	}
	usr, _ := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	if !usr.IsInstructor() {
		t.Errorf("toggle must grant the role; got %v", usr.Roles)
	}

	// revoke: toggling again removes the role
	if res = toggle(t, adminToken, student.ID, user.RoleInstructor); res.StatusCode != http.StatusOK {
		t.Fatalf("toggle failed! code = %v", res.StatusCode)
	}
	usr, _ = usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	if usr.IsInstructor() {
		t.Errorf("toggle must revoke the role; got %v", usr.Roles)
	}
	if !usr.IsStudent() {
		t.Errorf("other roles must be preserved; got %v", usr.Roles)
	}
}

func Test_userApi_toggleGroup(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, nil, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, []string{"1"}, true)
	adminToken := getToken(t, admin)

	toggle := func(t *testing.T, id, groupID string) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/"+id+"/toggle-group", adminToken,
			marchallObj(t, echoapi.ToggleGroupRequest{GroupID: groupID}))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle failed! code = %v", rec.Code)
		}
	}

	toggle(t, student.ID, "2")
	usr, _ := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	if !usr.InGroup("1") || !usr.InGroup("2") {
		t.Errorf("toggle must add the group; got %v", usr.Groups)
	}

	toggle(t, student.ID, "1")
	usr, _ = usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	if usr.InGroup("1") || !usr.InGroup("2") {
		t.Errorf("toggle must remove the group; got %v", usr.Groups)
	}
}

func Test_userApi_createInviteCode(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, nil, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, nil, true)

	// admin only
	req, rec := newAuthRequest(http.MethodPost, "/v1/users/invite-codes", getToken(t, student))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin must be denied! code = %v", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/users/invite-codes", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("failed! code = %v", rec.Code)
	}
	var code user.InviteCode
	if err := json.Unmarshal(rec.Body.Bytes(), &code); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if len(code.Code) != 8 {
		t.Errorf("invite code must be 8 characters; got %q", code.Code)
	}
}
