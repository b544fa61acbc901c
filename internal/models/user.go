package models

type EducationItem struct {
	ID          string `bson:"id" json:"id"`
	Institution string `bson:"institution" json:"institution" validate:"required"`
	Degree      string `bson:"degree" json:"degree" validate:"required"`
	StartYear   string `bson:"start_year" json:"start_year"`
	EndYear     string `bson:"end_year" json:"end_year"`
}

type ExperienceItem struct {
	ID          string `bson:"id" json:"id"`
	Company     string `bson:"company" json:"company" validate:"required"`
	Role        string `bson:"role" json:"role" validate:"required"`
	StartYear   string `bson:"start_year" json:"start_year"`
	EndYear     string `bson:"end_year" json:"end_year"`
	Description string `bson:"description" json:"description"`
}

type Contacts struct {
	Phone     string `bson:"phone" json:"phone"`
	LinkedIn  string `bson:"linkedin" json:"linkedin"`
	Instagram string `bson:"instagram" json:"instagram"`
	Website   string `bson:"website" json:"website"`
}

type User struct {
	ID              string           `bson:"_id" json:"id"`
	Name            string           `bson:"name" json:"name"`
	Email           string           `bson:"email" json:"email" validate:"required,email"`
	PasswordHash    string           `bson:"password_hash,omitempty" json:"-"`
	Role            string           `bson:"role" json:"role"`
	Bio             string           `bson:"bio" json:"bio"`
	PhotoURL        string           `bson:"photo_url" json:"photo_url"`
	Education       []EducationItem  `bson:"education" json:"education"`
	Experience      []ExperienceItem `bson:"experience" json:"experience"`
	Location        string           `bson:"location" json:"location"`
	IsVerifiedHuman bool             `bson:"is_verified_human" json:"is_verified_human"`
	Followers       int              `bson:"followers" json:"followers"`
	Following       []string         `bson:"following" json:"following"`
	Contacts        *Contacts        `bson:"contacts,omitempty" json:"contacts,omitempty"`
}

func (u User) Clone() User {
	out := u
	if u.Education != nil {
		out.Education = append([]EducationItem(nil), u.Education...)
	}
	if u.Experience != nil {
		out.Experience = append([]ExperienceItem(nil), u.Experience...)
	}
	if u.Following != nil {
		out.Following = append([]string(nil), u.Following...)
	}
	if u.Contacts != nil {
		c := *u.Contacts
		out.Contacts = &c
	}
	return out
}

// IsFollowing reports whether u follows the user with id.
func (u User) IsFollowing(id string) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}
