package db

import "time"

// Entity maps portalerts.entities.
type Entity struct {
	EntityID       int64      `gorm:"column:entity_id;primaryKey;autoIncrement"`
	EntityUUID     string     `gorm:"column:entity_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	Name           string     `gorm:"column:name;type:text;not null"`
	Symbol         string     `gorm:"column:symbol;type:text;not null;default:''"`
	SocialHandle   *string    `gorm:"column:social_handle;type:text"`
	SearchTerms    string     `gorm:"column:search_terms;type:text;not null;default:''"`
	LastChecked    *time.Time `gorm:"column:last_checked;type:timestamptz"`
	Active         bool       `gorm:"column:active;type:boolean;not null;default:true"`
	LeaseOwner     *string    `gorm:"column:lease_owner;type:text"`
	LeaseExpiresAt *time.Time `gorm:"column:lease_expires_at;type:timestamptz"`
	CreatedAt      time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Entity) TableName() string { return "portalerts.entities" }

// ScoredPost maps portalerts.scored_posts. Rows are never updated.
// (entity_id, md5(post_text)) is unique; see post_automigrate.sql.
type ScoredPost struct {
	PostID          int64     `gorm:"column:post_id;primaryKey;autoIncrement"`
	PostUUID        string    `gorm:"column:post_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	EntityID        int64     `gorm:"column:entity_id;type:bigint;not null"`
	PostText        string    `gorm:"column:post_text;type:text;not null"`
	AuthorLabel     string    `gorm:"column:author_label;type:text;not null"`
	DiscoveredAt    time.Time `gorm:"column:discovered_at;type:timestamptz;not null;default:now()"`
	ImportanceScore int16     `gorm:"column:importance_score;type:smallint;not null"`
	Category        string    `gorm:"column:category;type:portalerts.post_category;not null;default:general"`
	Summary         string    `gorm:"column:summary;type:text;not null;default:''"`
	SourceURL       string    `gorm:"column:source_url;type:text;not null;default:''"`
}

func (ScoredPost) TableName() string { return "portalerts.scored_posts" }

// Subscriber maps portalerts.subscribers.
type Subscriber struct {
	SubscriberID     int64     `gorm:"column:subscriber_id;primaryKey;autoIncrement"`
	SubscriberUUID   string    `gorm:"column:subscriber_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	TelegramChatID   int64     `gorm:"column:telegram_chat_id;type:bigint;not null;unique"`
	TelegramUsername *string   `gorm:"column:telegram_username;type:text"`
	DefaultThreshold int16     `gorm:"column:default_threshold;type:smallint;not null;default:7"`
	Active           bool      `gorm:"column:active;type:boolean;not null;default:true"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Subscriber) TableName() string { return "portalerts.subscribers" }

// Subscription maps portalerts.subscriptions. A NULL threshold falls back to the subscriber default.
type Subscription struct {
	SubscriberID int64     `gorm:"column:subscriber_id;type:bigint;primaryKey"`
	EntityID     int64     `gorm:"column:entity_id;type:bigint;primaryKey"`
	Threshold    *int16    `gorm:"column:threshold;type:smallint"`
	Active       bool      `gorm:"column:active;type:boolean;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Subscription) TableName() string { return "portalerts.subscriptions" }

// NotificationAttempt maps portalerts.notification_attempts.
type NotificationAttempt struct {
	PostID            int64     `gorm:"column:post_id;type:bigint;primaryKey"`
	SubscriberID      int64     `gorm:"column:subscriber_id;type:bigint;primaryKey"`
	EntityID          int64     `gorm:"column:entity_id;type:bigint;not null"`
	Status            string    `gorm:"column:status;type:text;not null;default:pending"`
	ProviderMessageID *string   `gorm:"column:provider_message_id;type:text"`
	ErrorMessage      *string   `gorm:"column:error_message;type:text"`
	AttemptedAt       time.Time `gorm:"column:attempted_at;type:timestamptz;not null;default:now()"`
}

func (NotificationAttempt) TableName() string { return "portalerts.notification_attempts" }

func autoMigrateModels() []any {
	return []any{
		&Entity{},
		&ScoredPost{},
		&Subscriber{},
		&Subscription{},
		&NotificationAttempt{},
	}
}
