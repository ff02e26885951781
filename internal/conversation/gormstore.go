package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/chaobytes/chaogpt/internal/personality"
	"github.com/chaobytes/chaogpt/internal/vibe"
)

type conversationRow struct {
	ID                string    `gorm:"primaryKey;size:26"`
	Title             string    `gorm:"type:varchar(64);not null"`
	Emoji             string    `gorm:"type:varchar(16)"`
	CurrentVibe       string    `gorm:"type:varchar(16);index;not null"`
	VibeScore         int       `gorm:"not null"`
	MessageCount      int       `gorm:"not null"`
	TotalTokens       int       `gorm:"not null"`
	AverageResponseMs float64   `gorm:"not null"`
	ChaosLevel        int       `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time `gorm:"index"`
}

func (conversationRow) TableName() string { return "conversations" }

type messageRow struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ConversationID string    `gorm:"size:26;index:idx_msg_conv_seq,priority:1;not null"`
	Seq            int       `gorm:"index:idx_msg_conv_seq,priority:2;not null"`
	Role           string    `gorm:"type:varchar(16);not null"`
	Content        string    `gorm:"type:text;not null"`
	Vibe           string    `gorm:"type:varchar(16);not null"`
	Reactions      []string  `gorm:"serializer:json"`
	Tokens         int       `gorm:"not null"`
	StreamDuration int64     `gorm:"not null"`
	EmotionalTone  string    `gorm:"type:varchar(16)"`
	CreatedAt      time.Time
}

func (messageRow) TableName() string { return "conversation_messages" }

// GormStore is the durable Store implementation. Per-conversation atomicity
// comes from wrapping every mutation in a transaction.
type GormStore struct {
	db         *gorm.DB
	messageCap int
	sampler    *personality.Sampler
	now        func() time.Time
}

// OpenDB dials the DSN, picking sqlite for file-style DSNs and mysql
// otherwise, and migrates the schema.
func OpenDB(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "file:") || strings.HasSuffix(dsn, ".db") {
		dialector = gormsqlite.Open(dsn)
	} else {
		dialector = gormmysql.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&conversationRow{}, &messageRow{}); err != nil {
		return nil, err
	}
	return db, nil
}

func NewGormStore(db *gorm.DB, messageCap int, sampler *personality.Sampler) *GormStore {
	if messageCap <= 0 {
		messageCap = 50
	}
	if sampler == nil {
		sampler = personality.NewDefaultSampler()
	}
	return &GormStore{db: db, messageCap: messageCap, sampler: sampler, now: time.Now}
}

func rowToMessage(r messageRow) Message {
	reactions := r.Reactions
	if reactions == nil {
		reactions = []string{}
	}
	return Message{
		ID:             r.ID,
		Role:           Role(r.Role),
		Content:        r.Content,
		CreatedAt:      r.CreatedAt,
		Vibe:           vibe.Mode(r.Vibe),
		Reactions:      reactions,
		Tokens:         r.Tokens,
		StreamDuration: r.StreamDuration,
		EmotionalTone:  r.EmotionalTone,
	}
}

func (s *GormStore) load(tx *gorm.DB, id string) (*Record, error) {
	var row conversationRow
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var msgRows []messageRow
	if err := tx.Where("conversation_id = ?", id).Order("seq ASC").Find(&msgRows).Error; err != nil {
		return nil, err
	}

	msgs := make([]Message, len(msgRows))
	for i, m := range msgRows {
		msgs[i] = rowToMessage(m)
	}

	return &Record{
		ID:          row.ID,
		Title:       row.Title,
		Emoji:       row.Emoji,
		Messages:    msgs,
		CurrentVibe: vibe.Mode(row.CurrentVibe),
		VibeScore:   row.VibeScore,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Metadata: Aggregates{
			MessageCount:        row.MessageCount,
			TotalTokens:         row.TotalTokens,
			AverageResponseTime: row.AverageResponseMs,
			ChaosLevel:          row.ChaosLevel,
		},
	}, nil
}

func (s *GormStore) Create(ctx context.Context, firstMessage string, v vibe.Mode) (*Record, error) {
	now := s.now()
	row := conversationRow{
		ID:          NewConversationID(),
		Title:       TitleFrom(firstMessage),
		Emoji:       personality.ConversationEmoji(s.sampler),
		CurrentVibe: string(v),
		VibeScore:   50,
		ChaosLevel:  v.ChaosLevel(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}
	return s.load(s.db.WithContext(ctx), row.ID)
}

func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	return s.load(s.db.WithContext(ctx), id)
}

func (s *GormStore) listIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&conversationRow{}).
		Order("updated_at DESC").Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) List(ctx context.Context) ([]*Record, error) {
	ids, err := s.listIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.load(s.db.WithContext(ctx), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *GormStore) Search(ctx context.Context, query string) ([]*Record, error) {
	pattern := "%" + strings.ToLower(query) + "%"
	var ids []string
	err := s.db.WithContext(ctx).Model(&conversationRow{}).
		Distinct("conversations.id").
		Joins("LEFT JOIN conversation_messages ON conversation_messages.conversation_id = conversations.id").
		Where("LOWER(conversations.title) LIKE ? OR LOWER(conversation_messages.content) LIKE ?", pattern, pattern).
		Pluck("conversations.id", &ids).Error
	if err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.load(s.db.WithContext(ctx), id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *GormStore) Update(ctx context.Context, id string, upd Update) (*Record, error) {
	fields := map[string]any{"updated_at": s.now()}
	if upd.Title != nil {
		fields["title"] = *upd.Title
	}
	if upd.Emoji != nil {
		fields["emoji"] = *upd.Emoji
	}
	if upd.Vibe != nil {
		fields["current_vibe"] = string(*upd.Vibe)
		fields["chaos_level"] = upd.Vibe.ChaosLevel()
	}

	res := s.db.WithContext(ctx).Model(&conversationRow{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.load(s.db.WithContext(ctx), id)
}

func (s *GormStore) Delete(ctx context.Context, id string) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&conversationRow{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Delete(&messageRow{}, "conversation_id = ?", id).Error
	})
	return deleted, err
}

func (s *GormStore) DeleteAll(ctx context.Context) (int, error) {
	n := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&conversationRow{}).Count(&count).Error; err != nil {
			return err
		}
		n = int(count)
		if err := tx.Where("1 = 1").Delete(&conversationRow{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&messageRow{}).Error
	})
	return n, err
}

func (s *GormStore) AppendMessage(ctx context.Context, id string, msg Message) (*Message, error) {
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Reactions == nil {
		msg.Reactions = []string{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row conversationRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var maxSeq int
		if err := tx.Model(&messageRow{}).Where("conversation_id = ?", id).
			Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}

		if err := tx.Create(&messageRow{
			ID:             msg.ID,
			ConversationID: id,
			Seq:            maxSeq + 1,
			Role:           string(msg.Role),
			Content:        msg.Content,
			Vibe:           string(msg.Vibe),
			Reactions:      msg.Reactions,
			Tokens:         msg.Tokens,
			StreamDuration: msg.StreamDuration,
			EmotionalTone:  msg.EmotionalTone,
			CreatedAt:      msg.CreatedAt,
		}).Error; err != nil {
			return err
		}

		row.MessageCount++
		row.TotalTokens += msg.Tokens

		// Bounded retention, same contract as the memory store.
		var count int64
		if err := tx.Model(&messageRow{}).Where("conversation_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		for count > int64(s.messageCap) {
			var oldest messageRow
			if err := tx.Where("conversation_id = ?", id).Order("seq ASC").First(&oldest).Error; err != nil {
				return err
			}
			if err := tx.Delete(&messageRow{}, "id = ?", oldest.ID).Error; err != nil {
				return err
			}
			row.MessageCount--
			row.TotalTokens -= oldest.Tokens
			count--
		}

		var msgRows []messageRow
		if err := tx.Where("conversation_id = ?", id).Order("seq ASC").Find(&msgRows).Error; err != nil {
			return err
		}
		msgs := make([]Message, len(msgRows))
		for i, m := range msgRows {
			msgs[i] = rowToMessage(m)
		}
		row.VibeScore = VibeScoreOf(msgs)
		row.UpdatedAt = s.now()

		return tx.Save(&row).Error
	})
	if err != nil {
		return nil, err
	}
	stored := msg
	return &stored, nil
}

func (s *GormStore) SetVibe(ctx context.Context, id string, v vibe.Mode) (*Record, error) {
	return s.Update(ctx, id, Update{Vibe: &v})
}

func (s *GormStore) RecordResponseTime(ctx context.Context, id string, d time.Duration) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row conversationRow
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		n := row.MessageCount
		if n <= 0 {
			n = 1
		}
		row.AverageResponseMs = (row.AverageResponseMs*float64(n-1) + float64(d.Milliseconds())) / float64(n)
		return tx.Save(&row).Error
	})
}

func (s *GormStore) Context(ctx context.Context, id string, max int) ([]Message, error) {
	rec, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	msgs := rec.Messages
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	return msgs, nil
}

func (s *GormStore) Stats(ctx context.Context) (Stats, error) {
	var rows []conversationRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return Stats{}, err
	}
	if len(rows) == 0 {
		return Stats{AverageVibeScore: 50, MostUsedVibe: vibe.Default}, nil
	}

	var totalMessages int
	var vibeSum, chaosSum float64
	counts := map[vibe.Mode]int{}
	for _, r := range rows {
		totalMessages += r.MessageCount
		vibeSum += float64(r.VibeScore)
		chaosSum += float64(r.ChaosLevel)
		counts[vibe.Mode(r.CurrentVibe)]++
	}
	most := vibe.Default
	for _, v := range vibe.All() {
		if counts[v] > counts[most] {
			most = v
		}
	}

	n := float64(len(rows))
	return Stats{
		TotalConversations: len(rows),
		TotalMessages:      totalMessages,
		AverageVibeScore:   vibeSum / n,
		MostUsedVibe:       most,
		ChaosScore:         chaosSum / n,
	}, nil
}

func (s *GormStore) Export(ctx context.Context, id string) ([]byte, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(rec, "", "  ")
}

func (s *GormStore) Import(ctx context.Context, data []byte) (*Record, error) {
	var in Record
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, ErrInvalidImport
	}
	if in.ID == "" || in.Messages == nil {
		return nil, ErrInvalidImport
	}
	normalizeImport(&in, s.messageCap)

	now := s.now()
	newID := NewConversationID()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conversationRow{
			ID:                newID,
			Title:             in.Title,
			Emoji:             in.Emoji,
			CurrentVibe:       string(in.CurrentVibe),
			VibeScore:         in.VibeScore,
			MessageCount:      in.Metadata.MessageCount,
			TotalTokens:       in.Metadata.TotalTokens,
			AverageResponseMs: in.Metadata.AverageResponseTime,
			ChaosLevel:        in.Metadata.ChaosLevel,
			CreatedAt:         now,
			UpdatedAt:         now,
		}).Error; err != nil {
			return err
		}
		for i, m := range in.Messages {
			if err := tx.Create(&messageRow{
				ID:             NewMessageID(),
				ConversationID: newID,
				Seq:            i + 1,
				Role:           string(m.Role),
				Content:        m.Content,
				Vibe:           string(m.Vibe),
				Reactions:      m.Reactions,
				Tokens:         m.Tokens,
				StreamDuration: m.StreamDuration,
				EmotionalTone:  m.EmotionalTone,
				CreatedAt:      now,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.load(s.db.WithContext(ctx), newID)
}

func (s *GormStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	removed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&conversationRow{}).Where("updated_at < ?", cutoff).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Delete(&conversationRow{}, "id IN ?", ids).Error; err != nil {
			return err
		}
		if err := tx.Delete(&messageRow{}, "conversation_id IN ?", ids).Error; err != nil {
			return err
		}
		removed = len(ids)
		return nil
	})
	return removed, err
}
