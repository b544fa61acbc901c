package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joshua-takyi/humanfolio/internal/helpers"
	"github.com/joshua-takyi/humanfolio/internal/models"
	"github.com/joshua-takyi/humanfolio/internal/reconciler"
)

const openEndedYear = "current"

type RegisterInput struct {
	FullName      string                  `json:"full_name" validate:"required,min=4"`
	Email         string                  `json:"email" validate:"required,email"`
	Password      string                  `json:"password" validate:"required,min=8"`
	Role          string                  `json:"role"`
	Bio           string                  `json:"bio"`
	PhotoURL      string                  `json:"photo_url"`
	City          string                  `json:"city"`
	Country       string                  `json:"country"`
	Education     []models.EducationItem  `json:"education" validate:"dive"`
	Experience    []models.ExperienceItem `json:"experience" validate:"dive"`
	Contacts      *models.Contacts        `json:"contacts"`
	TermsAccepted bool                    `json:"terms_accepted" validate:"required"`
}

type ProfileUpdate struct {
	Name       *string                  `json:"name" validate:"omitempty,min=1"`
	Role       *string                  `json:"role"`
	Bio        *string                  `json:"bio"`
	PhotoURL   *string                  `json:"photo_url"`
	Location   *string                  `json:"location"`
	Education  *[]models.EducationItem  `json:"education"`
	Experience *[]models.ExperienceItem `json:"experience"`
	Contacts   *models.Contacts         `json:"contacts"`
}

type UserService struct {
	rec *reconciler.Reconciler
}

func NewUserService(rec *reconciler.Reconciler) *UserService {
	return &UserService{rec: rec}
}

// Register creates the account and waits for the store to acknowledge it.
// The display name is the first word of the full name.
func (us *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	names := strings.Fields(in.FullName)
	if len(names) == 0 {
		return nil, ErrBlankName
	}

	email := models.NormalizeEmail(in.Email)
	_, err := us.rec.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		ID:              helpers.NewUserID(),
		Name:            names[0],
		Email:           email,
		PasswordHash:    hash,
		Role:            strings.TrimSpace(in.Role),
		Bio:             strings.TrimSpace(in.Bio),
		PhotoURL:        in.PhotoURL,
		Education:       normalizeEducation(in.Education),
		Experience:      normalizeExperience(in.Experience),
		Location:        joinLocation(in.City, in.Country),
		IsVerifiedHuman: true,
		Followers:       0,
		Following:       []string{},
		Contacts:        in.Contacts,
	}

	w, err := us.rec.InsertUser(user)
	if errors.Is(err, models.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}
	if err := w.Wait(ctx); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: user: %w", ErrPersistFailed, err)
	}
	return &user, nil
}

// Login looks the email up in the mirrored users. A missing email and a wrong
// password are reported as different errors.
func (us *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("invalid email format: %w", err)
	}
	user, err := us.rec.FindUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrEmailNotFound
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" || !helpers.VerifyPassword(password, user.PasswordHash) {
		return nil, ErrWrongPassword
	}
	return &user, nil
}

func (us *UserService) GetUser(id string) (*models.User, error) {
	user, err := us.rec.User(id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of in. The mirror changes at once;
// the store write is not waited for.
func (us *UserService) UpdateProfile(ctx context.Context, actorID, id string, in ProfileUpdate) (*models.User, error) {
	if actorID != id {
		return nil, ErrForbidden
	}
	if err := models.Validate.Struct(in); err != nil {
		return nil, err
	}
	if in.Education != nil {
		if err := models.Validate.Var(*in.Education, "dive"); err != nil {
			return nil, err
		}
	}
	if in.Experience != nil {
		if err := models.Validate.Var(*in.Experience, "dive"); err != nil {
			return nil, err
		}
	}

	var updated models.User
	_, err := us.rec.UpdateUser(id, func(user *models.User) error {
		if in.Name != nil {
			user.Name = strings.TrimSpace(*in.Name)
		}
		if in.Role != nil {
			user.Role = strings.TrimSpace(*in.Role)
		}
		if in.Bio != nil {
			user.Bio = strings.TrimSpace(*in.Bio)
		}
		if in.PhotoURL != nil {
			user.PhotoURL = *in.PhotoURL
		}
		if in.Location != nil {
			user.Location = strings.TrimSpace(*in.Location)
		}
		if in.Education != nil {
			user.Education = normalizeEducation(*in.Education)
		}
		if in.Experience != nil {
			user.Experience = normalizeExperience(*in.Experience)
		}
		if in.Contacts != nil {
			c := *in.Contacts
			user.Contacts = &c
		}
		updated = user.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	updated.PasswordHash = ""
	return &updated, nil
}

// ToggleFollow makes actor follow target, or unfollow when already
// following. It reports whether actor follows target afterwards.
func (us *UserService) ToggleFollow(ctx context.Context, actorID, targetID string) (bool, error) {
	if actorID == targetID {
		return false, ErrSelfFollow
	}
	var following bool
	_, err := us.rec.UpdateUsers([]string{actorID, targetID}, func(users []*models.User) error {
		actor, target := users[0], users[1]
		following = !actor.IsFollowing(targetID)
		if following {
			actor.Following = append(actor.Following, targetID)
			target.Followers++
			return nil
		}
		kept := make([]string, 0, len(actor.Following))
		for _, id := range actor.Following {
			if id != targetID {
				kept = append(kept, id)
			}
		}
		actor.Following = kept
		if target.Followers > 0 {
			target.Followers--
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

func joinLocation(city, country string) string {
	city, country = strings.TrimSpace(city), strings.TrimSpace(country)
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

func normalizeEducation(items []models.EducationItem) []models.EducationItem {
	out := make([]models.EducationItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = helpers.NewItemID()
		}
		if strings.TrimSpace(it.EndYear) == "" {
			it.EndYear = openEndedYear
		}
		out = append(out, it)
	}
	return out
}

func normalizeExperience(items []models.ExperienceItem) []models.ExperienceItem {
	out := make([]models.ExperienceItem, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			it.ID = helpers.NewItemID()
		}
		if strings.TrimSpace(it.EndYear) == "" {
			it.EndYear = openEndedYear
		}
		out = append(out, it)
	}
	return out
}
