package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"teams-enroll/enroll/internal/config"
	"teams-enroll/enroll/internal/enrollment"
	"teams-enroll/enroll/internal/logging"
	"teams-enroll/enroll/internal/profile"
	"teams-enroll/enroll/internal/prompt"
	"teams-enroll/enroll/internal/token"
	"teams-enroll/enroll/internal/wireguard"
)

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "teams-enroll",
		Short:        "Generate a WireGuard profile for WARP for Teams",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.Bind(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runRegister(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.Bool(config.KeyPrompt, false, "read private key from stdin instead of generating a new one")
	f.StringP(config.KeyDeviceName, "n", config.DefaultDeviceName, "device name to register with")
	f.String(config.KeyTeam, "", "Zero Trust organization name, used in the login instructions")
	f.StringP(config.KeyOutput, "o", "", "write the profile to this file instead of stdout")
	f.String(config.KeyInterface, "", "also apply the tunnel to this kernel WireGuard interface (requires root)")
	f.StringSlice(config.KeyDNS, profile.DefaultDNS, "DNS servers for the [Interface] section")
	f.Int(config.KeyMTU, config.DefaultMTU, "interface MTU, 0 to omit")
	f.String(config.KeyEndpoint, enrollment.DefaultEndpoint, "enrollment API endpoint")
	f.Duration(config.KeyTimeout, config.DefaultTimeout, "overall request timeout")
	f.Bool(config.KeyDebug, false, "enable debug logging on stderr")
	_ = f.MarkHidden(config.KeyEndpoint)

	cmd.AddCommand(
		NewPubkeyCommand(),
		NewDownCommand(),
		NewStatusCommand(),
	)
	return cmd
}

func runRegister(cmd *cobra.Command, cfg config.Config) error {
	log := logging.NewSimple(cfg.Debug)
	defer log.SafeSync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := prompt.New(cmd.InOrStdin(), cmd.ErrOrStderr())

	keyPair, err := loadKeyPair(p, cfg.Prompt)
	if err != nil {
		return err
	}
	log.Debug("wireguard key ready", zap.String("public_key", keyPair.PublicKey.String()))

	raw, err := p.AccessToken(cfg.Team)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	claims, err := token.Inspect(raw, time.Now())
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	log.Debug("access token accepted",
		zap.String("email", claims.Email),
		zap.String("issuer", claims.Issuer),
		zap.Time("expires_at", claims.ExpiresAt),
	)

	client := enrollment.New(enrollment.Options{
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
		Logger:   log,
	})
	reg := enrollment.NewRegistration(keyPair.PublicKey, cfg.DeviceName, time.Now())
	result, err := client.Register(ctx, reg, claims.Raw)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}

	prof, err := profile.New(keyPair.PrivateKey, result, profile.Options{DNS: cfg.DNS, MTU: cfg.MTU})
	if err != nil {
		return fmt.Errorf("build profile: %w", err)
	}

	if err := writeProfile(cmd, cfg.Output, prof); err != nil {
		return err
	}
	if cfg.Output != "" {
		log.Info("profile written", zap.String("path", cfg.Output))
	}

	if cfg.Interface != "" {
		wgCfg, err := prof.WireGuardConfig(cfg.Interface)
		if err != nil {
			return err
		}
		if err := wireguard.Apply(wgCfg); err != nil {
			_ = wireguard.Down(cfg.Interface)
			return fmt.Errorf("apply to %s: %w", cfg.Interface, err)
		}
		log.Info("tunnel applied", zap.String("iface", cfg.Interface), zap.String("endpoint", prof.Endpoint))
	}
	return nil
}

func loadKeyPair(p *prompt.Prompter, fromStdin bool) (wireguard.KeyPair, error) {
	if !fromStdin {
		return wireguard.GenerateKeyPair()
	}
	line, err := p.PrivateKey()
	if err != nil {
		return wireguard.KeyPair{}, err
	}
	return wireguard.ParsePrivateKey(line)
}

func writeProfile(cmd *cobra.Command, path string, prof profile.Profile) error {
	if path == "" {
		return prof.Render(cmd.OutOrStdout())
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if err := prof.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
