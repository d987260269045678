package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/sproto/internal/config"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func readInput(ctx *cli.Context, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(ctx.App.Reader)
	}
	return os.ReadFile(path)
}

func readHex(ctx *cli.Context, path string) ([]byte, error) {
	raw, err := readInput(ctx, path)
	if err != nil {
		return nil, err
	}
	clean := strings.Join(strings.Fields(string(raw)), "")
	out, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("input is not hex: %w", err)
	}
	return out, nil
}

func writeHex(ctx *cli.Context, b []byte) error {
	_, err := fmt.Fprintln(ctx.App.Writer, hex.EncodeToString(b))
	return err
}

func checkCmd(st *state) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "import the schema and list its types and protocols",
		Action: func(ctx *cli.Context) error {
			sp, err := st.sproto()
			if err != nil {
				return err
			}
			w := ctx.App.Writer
			for _, t := range sp.Schema().Types() {
				fmt.Fprintf(w, "type %s fields=%d slots=%d\n", t.Name, len(t.Fields()), t.MaxN())
			}
			for _, p := range sp.Schema().Protocols() {
				req, resp := "-", "-"
				if p.Request != nil {
					req = p.Request.Name
				}
				switch {
				case p.Response != nil:
					resp = p.Response.Name
				case p.Confirm:
					resp = "confirm"
				}
				fmt.Fprintf(w, "protocol %d %s request=%s response=%s\n", p.Tag, p.Name, req, resp)
			}
			return nil
		},
	}
}

func encodeCmd(st *state) *cli.Command {
	var typeName, in string
	var packed bool
	return &cli.Command{
		Name:  "encode",
		Usage: "encode a YAML or JSON value and print it as hex",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "type name", Required: true, Destination: &typeName},
			&cli.StringFlag{Name: "in", Usage: "value file, stdin when empty", Destination: &in},
			&cli.BoolFlag{Name: "pack", Usage: "pack the encoded bytes", Destination: &packed},
		},
		Action: func(ctx *cli.Context) error {
			sp, err := st.sproto()
			if err != nil {
				return err
			}
			raw, err := readInput(ctx, in)
			if err != nil {
				return err
			}
			var value map[string]any
			if err := yaml.Unmarshal(raw, &value); err != nil {
				return fmt.Errorf("parse value: %w", err)
			}
			if value == nil {
				value = map[string]any{}
			}
			out, err := sp.Encode(typeName, value)
			if err != nil {
				return err
			}
			if packed {
				out = sp.Pack(out)
			}
			log.Debug().Str("type", typeName).Int("bytes", len(out)).Bool("packed", packed).Msg("encode")
			return writeHex(ctx, out)
		},
	}
}

func decodeCmd(st *state) *cli.Command {
	var typeName, in string
	var packed bool
	return &cli.Command{
		Name:  "decode",
		Usage: "decode hex input and print it as YAML",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "type name", Required: true, Destination: &typeName},
			&cli.StringFlag{Name: "in", Usage: "hex file, stdin when empty", Destination: &in},
			&cli.BoolFlag{Name: "packed", Usage: "unpack before decoding", Destination: &packed},
		},
		Action: func(ctx *cli.Context) error {
			sp, err := st.sproto()
			if err != nil {
				return err
			}
			raw, err := readHex(ctx, in)
			if err != nil {
				return err
			}
			if packed {
				if raw, err = sp.Unpack(raw); err != nil {
					return err
				}
			}
			obj, used, err := sp.DecodeUsed(typeName, raw)
			if err != nil {
				return err
			}
			log.Debug().Str("type", typeName).Int("used", used).Int("bytes", len(raw)).Msg("decode")
			out, err := yaml.Marshal(map[string]any(obj))
			if err != nil {
				return fmt.Errorf("render value: %w", err)
			}
			_, err = ctx.App.Writer.Write(out)
			return err
		},
	}
}

func packCmd(st *state) *cli.Command {
	var in string
	return &cli.Command{
		Name:  "pack",
		Usage: "pack hex input",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Usage: "hex file, stdin when empty", Destination: &in},
		},
		Action: func(ctx *cli.Context) error {
			raw, err := readHex(ctx, in)
			if err != nil {
				return err
			}
			return writeHex(ctx, noSchema(st).Pack(raw))
		},
	}
}

func unpackCmd(st *state) *cli.Command {
	var in string
	var size int
	return &cli.Command{
		Name:  "unpack",
		Usage: "unpack hex input",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Usage: "hex file, stdin when empty", Destination: &in},
			&cli.IntFlag{Name: "size", Usage: "trim the output to this many bytes", Value: -1, Destination: &size},
		},
		Action: func(ctx *cli.Context) error {
			raw, err := readHex(ctx, in)
			if err != nil {
				return err
			}
			out, err := noSchema(st).Unpack(raw)
			if err != nil {
				return err
			}
			if size >= 0 {
				if size > len(out) {
					return fmt.Errorf("unpacked %d bytes, fewer than --size %d", len(out), size)
				}
				out = out[:size]
			}
			return writeHex(ctx, out)
		},
	}
}

func configCmd(st *state) *cli.Command {
	var path string
	var force bool
	return &cli.Command{
		Name:  "config",
		Usage: "manage the sprotoctl config file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "write a commented config template",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Usage: "target file, the --config path when empty", Destination: &path},
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file", Destination: &force},
				},
				Action: func(ctx *cli.Context) error {
					target := path
					if target == "" {
						target = st.configPath
					}
					if err := config.WriteTemplate(target, force); err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "wrote %s\n", target)
					return nil
				},
			},
		},
	}
}
