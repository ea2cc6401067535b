package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/danderson/dbusmeta"
	"github.com/danderson/dbusmeta/argument"
	"github.com/danderson/dbusmeta/fragments"
	"github.com/danderson/dbusmeta/metaobject"
	"github.com/kr/pretty"
	"go.uber.org/zap"
)

var globalArgs struct {
	Verbose bool `flag:"v,Log synthesis activity to stderr"`
}

func main() {
	root := &command.C{
		Name:     "dbusmeta",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "signature",
				Usage: "signature args...",
				Commands: []*command.C{
					{
						Name:  "validate",
						Usage: "validate sig...",
						Help:  "Check whether DBus type signatures are valid.",
						Run:   runSignatureValidate,
					},
					{
						Name:  "split",
						Usage: "split sig",
						Help: `Split a DBus type signature into its complete types.

Each type is described along with its alignment on the wire, and the
types of container elements are described recursively.`,
						Run: command.Adapt(runSignatureSplit),
					},
				},
			},
			{
				Name: "synth",
				Usage: `synth file.xml
synth --iface name file.xml
synth --merge file.xml`,
				Help: `Synthesize meta-objects from an introspection document.

With --iface, only the named interface is shown. With --merge, all
the document's interfaces are merged into one. Otherwise, every
interface in the document is shown.

Use "-" to read the document from stdin.`,
				SetFlags: command.Flags(flax.MustBind, &synthArgs),
				Run:      command.Adapt(runSynth),
			},
			{
				Name:  "decode",
				Usage: "decode sig hex",
				Help: `Decode a hex-encoded DBus message body.

The body is decoded according to the given signature, and printed in
the same format used by debug logging.`,
				SetFlags: command.Flags(flax.MustBind, &decodeArgs),
				Run:      command.Adapt(runDecode),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

func runSignatureValidate(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("validate requires at least one signature.")
	}
	var bad int
	for _, sig := range env.Args {
		switch {
		case dbusmeta.IsValidSingleSignature(sig):
			fmt.Printf("%q: valid, single complete type\n", sig)
		case dbusmeta.IsValidSignature(sig):
			fmt.Printf("%q: valid\n", sig)
		default:
			bad++
			if _, err := dbusmeta.SplitSignature(sig); err != nil {
				fmt.Printf("%q: invalid: %v\n", sig, err)
			} else {
				fmt.Printf("%q: invalid\n", sig)
			}
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d signatures are invalid", bad, len(env.Args))
	}
	return nil
}

func runSignatureSplit(env *command.Env, sig string) error {
	types, err := dbusmeta.SplitSignature(sig)
	if err != nil {
		return err
	}
	out := indenter{w: os.Stdout}
	for _, t := range types {
		describe(&out, t, 0)
	}
	return nil
}

var synthArgs struct {
	Interface     string `flag:"iface,Interface to synthesize"`
	Merge         bool   `flag:"merge,Merge all interfaces of the document into one"`
	NoAnnotations bool   `flag:"no-annotations,Ignore type name annotations when resolving types"`
	Raw           bool   `flag:"raw,Also dump the raw meta-object tables"`
	Types         string `flag:"types,Comma-separated list of Name=signature application types to register"`
}

func runtimeOpts() ([]metaobject.Option, error) {
	var ret []metaobject.Option
	if globalArgs.Verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		ret = append(ret, metaobject.WithLogger(log))
	}
	if synthArgs.NoAnnotations {
		ret = append(ret, metaobject.WithoutAnnotations())
	}
	if synthArgs.Types != "" {
		var types []metaobject.TypeSpec
		for _, t := range strings.Split(synthArgs.Types, ",") {
			name, sig, ok := strings.Cut(t, "=")
			if !ok {
				return nil, fmt.Errorf("invalid type %q, want Name=signature", t)
			}
			types = append(types, metaobject.TypeSpec{Name: name, Signature: sig})
		}
		ret = append(ret, metaobject.WithTypes(types...))
	}
	return ret, nil
}

func readDoc(path string) (string, error) {
	var (
		bs  []byte
		err error
	)
	if path == "-" {
		bs, err = io.ReadAll(os.Stdin)
	} else {
		bs, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading introspection document: %w", err)
	}
	return string(bs), nil
}

func runSynth(env *command.Env, path string) error {
	opts, err := runtimeOpts()
	if err != nil {
		return err
	}
	rt, err := metaobject.NewRuntime(opts...)
	if err != nil {
		return err
	}
	doc, err := readDoc(path)
	if err != nil {
		return err
	}

	var names []string
	switch {
	case synthArgs.Merge:
		names = []string{""}
	case synthArgs.Interface != "":
		names = []string{synthArgs.Interface}
	default:
		names, err = interfaceNames(doc)
		if err != nil {
			return err
		}
	}

	for i, name := range names {
		mo, err := rt.Cache().MetaObjectForXML(name, doc)
		if err != nil {
			if mo == nil || !errors.Is(err, metaobject.ErrInterfaceNotFound) {
				return err
			}
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(mo)
		if synthArgs.Raw {
			fmt.Printf("%# v\n", pretty.Formatter(rawTables(mo)))
		}
	}
	return nil
}

var decodeArgs struct {
	Order string `flag:"order,default=l,Byte order flag of the input (l or B)"`
	Value bool   `flag:"value,Dump decoded values as Go data structures"`
}

func runDecode(env *command.Env, sig, data string) error {
	if len(decodeArgs.Order) != 1 {
		return env.Usagef("--order must be 'l' or 'B'")
	}
	order, err := fragments.OrderForFlag(decodeArgs.Order[0])
	if err != nil {
		return err
	}
	bs, err := hex.DecodeString(strings.Join(strings.Fields(data), ""))
	if err != nil {
		return fmt.Errorf("decoding hex: %w", err)
	}

	d, err := argument.NewDemarshaller(order, sig, bs)
	if err != nil {
		return err
	}
	if decodeArgs.Value {
		vs, err := d.ReadAll()
		if err != nil {
			return err
		}
		for _, v := range vs {
			fmt.Printf("%# v\n", pretty.Formatter(v))
		}
	} else {
		s, err := argument.FormatAll(d)
		if err != nil {
			return err
		}
		fmt.Println(s)
	}
	return d.Finish()
}
