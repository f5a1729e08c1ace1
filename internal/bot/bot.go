package bot

import (
	"context"
	"time"

	"sentinel-antinuke/internal/config"
	"sentinel-antinuke/internal/guard"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	actorMaxAge = 30 * time.Second
	kickMaxAge  = 5 * time.Second
	auditLimit  = 5
)

type Bot struct {
	cfg      config.Config
	logger   *zap.Logger
	session  *discordgo.Session
	platform *DiscordPlatform
	guard    *guard.Guard
}

// New creates the session and its platform adapter. Attach the guard with
// SetGuard before serving; the guard itself needs the adapter.
func New(cfg config.Config, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans

	b := &Bot{
		cfg:      cfg,
		logger:   logger,
		session:  session,
		platform: newPlatform(session),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onChannelDelete)
	session.AddHandler(b.onRoleDelete)
	session.AddHandler(b.onGuildBanAdd)
	session.AddHandler(b.onGuildMemberRemove)
	session.AddHandler(b.onMessageCreate)
	return b, nil
}

func (b *Bot) Platform() *DiscordPlatform {
	return b.platform
}

func (b *Bot) SetGuard(g *guard.Guard) {
	b.guard = g
}

// Serve implements suture.Service: it opens the gateway, blocks until the
// context ends and closes the session.
func (b *Bot) Serve(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return err
	}
	b.logger.Info("bot started")

	<-ctx.Done()
	if err := b.session.Close(); err != nil {
		b.logger.Warn("session close failed", zap.Error(err))
	}
	return ctx.Err()
}

func (b *Bot) String() string {
	return "discord-bot"
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) selfID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}
