package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/stellar/go/keypair"
	"golang.org/x/crypto/bcrypt"

	"github.com/dtroode/househelp-server/internal/ledger"
	"github.com/dtroode/househelp-server/internal/logger"
	"github.com/dtroode/househelp-server/internal/model"
)

// DefaultStartingBalance is granted to every registered wallet, in XLM.
const DefaultStartingBalance = "5"

var (
	phonePattern = regexp.MustCompile(`^\+254\d{9}$`)
	pinPattern   = regexp.MustCompile(`^\d{4}$`)
)

// UserDirectory resolves phones to registered users.
type UserDirectory interface {
	Reserve(phone string) error
	Release(phone string)
	Commit(user model.UserRecord)
	Lookup(phone string) (model.UserRecord, error)
}

// Registration is the input of Register.
type Registration struct {
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	County    string   `json:"county"`
	Role      string   `json:"role"`
	PIN       string   `json:"pin"`
	WorkTypes []string `json:"workTypes,omitempty"`
}

// Validate checks required fields and formats.
func (r Registration) Validate() error {
	if r.Name == "" || r.Phone == "" || r.County == "" || r.Role == "" || r.PIN == "" {
		return model.NewValidationError("", "Missing required fields: name, phone, county, role, pin")
	}
	if !phonePattern.MatchString(r.Phone) {
		return model.NewValidationError("phone", "must be in format +254XXXXXXXXX")
	}
	if !pinPattern.MatchString(r.PIN) {
		return model.NewValidationError("pin", "must be exactly 4 digits")
	}
	if r.Role != model.RoleWorker && r.Role != model.RoleEmployer {
		return model.NewValidationError("role", "must be 'worker' or 'employer'")
	}
	return nil
}

// Session is an authenticated user plus its access token.
type Session struct {
	model.PublicUser
	AccessToken string `json:"accessToken"`
}

type Auth struct {
	directory       UserDirectory
	platform        *Platform
	anchor          *Anchor
	index           *Index
	tokens          *TokenService
	startingBalance string
	newKeypair      func() (*keypair.Full, error)
	now             func() time.Time
	logger          *logger.Logger
}

func NewAuth(
	directory UserDirectory,
	platform *Platform,
	anchor *Anchor,
	index *Index,
	tokens *TokenService,
	startingBalance string,
	logger *logger.Logger,
) *Auth {
	if startingBalance == "" {
		startingBalance = DefaultStartingBalance
	}
	return &Auth{
		directory:       directory,
		platform:        platform,
		anchor:          anchor,
		index:           index,
		tokens:          tokens,
		startingBalance: startingBalance,
		newKeypair:      keypair.Random,
		now:             time.Now,
		logger:          logger,
	}
}

// Register creates a wallet for the user and anchors the registration record.
func (a *Auth) Register(ctx context.Context, reg Registration) (Session, error) {
	reg.Phone = strings.TrimSpace(reg.Phone)
	if err := reg.Validate(); err != nil {
		return Session{}, err
	}

	a.logger.Debug("Auth service: starting user registration",
		"phone", reg.Phone,
		"role", reg.Role)

	if err := a.directory.Reserve(reg.Phone); err != nil {
		a.logger.Info("Auth service: phone already registered",
			"phone", reg.Phone)
		return Session{}, err
	}
	committed := false
	defer func() {
		if !committed {
			a.directory.Release(reg.Phone)
		}
	}()

	wallet, err := a.newKeypair()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate wallet: %w", err)
	}

	_, err = a.platform.Submit(ctx, func(int64) (string, []ledger.Operation, error) {
		return "", []ledger.Operation{
			ledger.CreateAccount{Destination: wallet.Address(), StartingBalance: a.startingBalance},
		}, nil
	})
	if err != nil {
		a.logger.Error("Auth service: failed to create wallet",
			"phone", reg.Phone,
			"error", err)
		return Session{}, fmt.Errorf("failed to create wallet: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.PIN), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("failed to hash pin: %w", err)
	}

	user := model.UserRecord{
		Name:      reg.Name,
		Phone:     reg.Phone,
		County:    reg.County,
		Role:      reg.Role,
		PINHash:   string(hash),
		PublicKey: wallet.Address(),
		WorkTypes: reg.WorkTypes,
		CreatedAt: model.NewTime(a.now().UTC()),
	}

	if _, err := a.anchor.Anchor(ctx, wallet.Address(), userNamespace(reg.Role), user); err != nil {
		return Session{}, fmt.Errorf("failed to anchor registration: %w", err)
	}

	a.directory.Commit(user)
	committed = true

	token, err := a.tokens.Issue(ctx, user.PublicKey, user.Role)
	if err != nil {
		return Session{}, err
	}

	a.logger.Info("Auth service: user registered",
		"phone", reg.Phone,
		"public_key", user.PublicKey,
		"role", user.Role)

	return Session{PublicUser: user.Public(), AccessToken: token}, nil
}

// Login checks phone and PIN against the directory.
func (a *Auth) Login(ctx context.Context, phone, pin string) (Session, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" || pin == "" {
		return Session{}, model.NewValidationError("", "Phone and PIN are required")
	}

	user, err := a.directory.Lookup(phone)
	if errors.Is(err, model.ErrNotFound) {
		a.logger.Info("Auth service: login for unknown phone",
			"phone", phone)
		return Session{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if !verifyPIN(user.PINHash, pin) {
		a.logger.Info("Auth service: pin mismatch",
			"phone", phone)
		return Session{}, model.ErrInvalidCredentials
	}

	token, err := a.tokens.Issue(ctx, user.PublicKey, user.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{PublicUser: user.Public(), AccessToken: token}, nil
}

// Users lists every anchored registration. It feeds directory hydration.
func (a *Auth) Users(ctx context.Context) ([]model.UserRecord, error) {
	var users []model.UserRecord
	for _, ns := range []model.Namespace{model.NamespaceEmployees, model.NamespaceEmployers} {
		listing, err := a.index.ListNamespace(ctx, a.platform.Address(), ns, Ascending)
		if err != nil {
			return nil, err
		}
		users = append(users, Decode[model.UserRecord](a.index, &listing)...)
	}
	return users, nil
}

func userNamespace(role string) model.Namespace {
	if role == model.RoleEmployer {
		return model.NamespaceEmployers
	}
	return model.NamespaceEmployees
}

// verifyPIN accepts bcrypt hashes and the unsalted sha256 hex digests written
// by earlier deployments.
func verifyPIN(hash, pin string) bool {
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
	}
	sum := sha256.Sum256([]byte(pin))
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(hex.EncodeToString(sum[:]))) == 1
}
