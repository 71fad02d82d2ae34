package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/maktaba/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
		CountUsers(ctx context.Context) (int, error)

		CreateInviteCode(ctx context.Context, code InviteCode) error
		GetInviteCode(ctx context.Context, code string) (InviteCode, error)
		DeleteInviteCode(ctx context.Context, code string) error
	}

	Service interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, ru RegisterUser) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		ToggleRole(ctx context.Context, id, role string) (User, error)
		ToggleGroup(ctx context.Context, id, groupID string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		GenerateInviteCode(ctx context.Context) (InviteCode, error)
		RedeemInviteCode(ctx context.Context, code string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
	}
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		Groups:    nu.Groups,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Register self-registers a new account. The very first user becomes admin and
// needs no invite code; everyone else must redeem a valid single-use code and
// starts out as a student.
func (svc *service) Register(ctx context.Context, ru RegisterUser) (User, error) {
	count, err := svc.repo.CountUsers(ctx)
	if err != nil {
		return User{}, errors.Wrap(err, "counting users")
	}

	roles := []string{RoleAdmin}
	if count > 0 {
		if ru.InviteCode == "" {
			return User{}, core.NewValidationError(ErrInvalidInviteCode,
				core.FieldError{Field: "invite_code", Error: ErrInvalidInviteCode.Error()})
		}
		if err := svc.RedeemInviteCode(ctx, ru.InviteCode); err != nil {
			if errors.Cause(err) == ErrInvalidInviteCode {
				return User{}, core.NewValidationError(err,
					core.FieldError{Field: "invite_code", Error: ErrInvalidInviteCode.Error()})
			}
			return User{}, err
		}
		roles = []string{RoleStudent}
	}

	// NB: if user creation fails past this point the code is already consumed;
	// accepted inconsistency risk, there is no multi-document transaction here.
	now := time.Now().UTC()
	usr := User{
		Username:  ru.Email,
		Email:     ru.Email,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(ru.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.FilterUsers(ctx, *filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	uname = core.CleanString(uname, true /* lower */)
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: []string{uname}})
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		Groups:    uu.Groups,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// ToggleRole adds `role` to the user's role set if absent, removes it if present.
// Applying it twice returns the set to its original value.
func (svc *service) ToggleRole(ctx context.Context, id, role string) (User, error) {
	if !core.StringInSlice(AllRoles, role) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: "invalid role"})
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	usr.Roles = toggleString(usr.Roles, role)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// ToggleGroup adds or removes a single group membership, like ToggleRole.
func (svc *service) ToggleGroup(ctx context.Context, id, groupID string) (User, error) {
	groupID = core.CleanString(groupID)
	if groupID == "" {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "group", Error: "this field is required"})
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	usr.Groups = toggleString(usr.Groups, groupID)
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "uid", Error: "invalid value"})
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "uid", Error: "invalid value"})
		}
		return err
	}
	if err := verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: "invalid value"})
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return err
}

// GenerateInviteCode creates and stores a fresh unused invite code.
// On the rare collision with an existing code it retries once.
func (svc *service) GenerateInviteCode(ctx context.Context) (InviteCode, error) {
	for attempt := 0; attempt < 2; attempt++ {
		code, err := generateCode()
		if err != nil {
			return InviteCode{}, err
		}
		if _, err = svc.repo.GetInviteCode(ctx, code); err == nil {
			continue // collision
		} else if errors.Cause(err) != ErrInvalidInviteCode {
			return InviteCode{}, err
		}

		ic := InviteCode{Code: code, CreatedAt: time.Now().UTC()}
		if err := svc.repo.CreateInviteCode(ctx, ic); err != nil {
			return InviteCode{}, err
		}
		return ic, nil
	}
	return InviteCode{}, errors.New("could not generate a unique invite code")
}

// RedeemInviteCode consumes a code: it is deleted on first use and any further
// redemption attempt fails with ErrInvalidInviteCode.
func (svc *service) RedeemInviteCode(ctx context.Context, code string) error {
	code = NormalizeCode(code)
	if _, err := svc.repo.GetInviteCode(ctx, code); err != nil {
		return err
	}
	return svc.repo.DeleteInviteCode(ctx, code)
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct {
			Name  string
			UID   string
			Token string
		}{usr.Name, EncodeUID(usr), token},
	})
}

func toggleString(set []string, s string) []string {
	for i, el := range set {
		if el == s {
			return append(set[:i:i], set[i+1:]...)
		}
	}
	return append(set, s)
}
