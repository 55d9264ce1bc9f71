package docstore

import "time"

type TeamType string

const (
	TeamAssault TeamType = "assault"
	TeamSupport TeamType = "support"
	TeamRecon   TeamType = "recon"
	TeamSniper  TeamType = "sniper"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

type ActivityType string

const (
	ActivityGame         ActivityType = "game"
	ActivityAchievement  ActivityType = "achievement"
	ActivityRegistration ActivityType = "registration"
	ActivityTeam         ActivityType = "team"
	ActivityEvent        ActivityType = "event"
)

// Weekdays is the display order of schedule days.
var Weekdays = []string{"Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}

// News is a feed post. Date is a calendar date (YYYY-MM-DD); Content is rich text.
type News struct {
	ID       int64    `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Date     string   `json:"date" yaml:"date"`
	Author   string   `json:"author" yaml:"author"`
	Content  string   `json:"content" yaml:"content"`
	Tags     []string `json:"tags,omitempty" yaml:"tags"`
	IsPinned bool     `json:"isPinned,omitempty" yaml:"isPinned"`
	Views    int      `json:"views,omitempty" yaml:"views"`
	Likes    int      `json:"likes,omitempty" yaml:"likes"`

	Leftover `json:"-" yaml:"-"`
}

// Event is one weekly schedule entry. TeamA and TeamB are free-text squad names.
type Event struct {
	ID              int64    `json:"id" yaml:"id"`
	Day             string   `json:"day" yaml:"day"`
	Time            string   `json:"time" yaml:"time"`
	Title           string   `json:"title" yaml:"title"`
	Server          string   `json:"server" yaml:"server"`
	Description     string   `json:"description" yaml:"description"`
	TeamA           []string `json:"teamA" yaml:"teamA"`
	TeamB           []string `json:"teamB" yaml:"teamB"`
	Participants    []string `json:"participants,omitempty" yaml:"participants"`
	MaxParticipants int      `json:"maxParticipants,omitempty" yaml:"maxParticipants"`

	Leftover `json:"-" yaml:"-"`
}

type Rule struct {
	ID          RuleID `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Icon        string `json:"icon" yaml:"icon"`
	Description string `json:"description" yaml:"description"`

	Leftover `json:"-" yaml:"-"`
}

type Team struct {
	ID          int64    `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Type        TeamType `json:"type" yaml:"type"`
	Leader      string   `json:"leader" yaml:"leader"`
	Size        int      `json:"size" yaml:"size"`
	MaxSize     int      `json:"maxSize" yaml:"maxSize"`
	Description string   `json:"description" yaml:"description"`
	Members     []string `json:"members,omitempty" yaml:"members"`

	Leftover `json:"-" yaml:"-"`
}

type FAQEntry struct {
	ID       int64  `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Order    *int   `json:"order,omitempty" yaml:"order"`

	Leftover `json:"-" yaml:"-"`
}

type User struct {
	ID        int64     `json:"id" yaml:"id"`
	Username  string    `json:"username" yaml:"username"`
	Role      Role      `json:"role" yaml:"role"`
	DiscordID *string   `json:"discordId" yaml:"discordId"`
	Joined    time.Time `json:"joined" yaml:"joined"`

	Leftover `json:"-" yaml:"-"`
}

// Profile holds a player's stats. UserID refers to a User but is not checked.
type Profile struct {
	UserID       int64      `json:"userId" yaml:"userId"`
	Username     string     `json:"username" yaml:"username"`
	DiscordID    *string    `json:"discordId" yaml:"discordId"`
	Rank         string     `json:"rank" yaml:"rank"`
	GamesPlayed  int        `json:"gamesPlayed" yaml:"gamesPlayed"`
	GamesWon     int        `json:"gamesWon" yaml:"gamesWon"`
	HoursPlayed  int        `json:"hoursPlayed" yaml:"hoursPlayed"`
	KDRatio      float64    `json:"kdRatio" yaml:"kdRatio"`
	Accuracy     string     `json:"accuracy" yaml:"accuracy"`
	SurvivalRate string     `json:"survivalRate" yaml:"survivalRate"`
	Rating       int        `json:"rating" yaml:"rating"`
	Activities   []Activity `json:"activities" yaml:"-"`
	Teams        []string   `json:"teams" yaml:"teams"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"createdAt"`

	Leftover `json:"-" yaml:"-"`
}

// Activity belongs to exactly one Profile; its ID is local to that profile.
type Activity struct {
	ID          int64        `json:"id" yaml:"id"`
	Type        ActivityType `json:"type" yaml:"type"`
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Time        time.Time    `json:"time" yaml:"time"`

	Leftover `json:"-" yaml:"-"`
}
