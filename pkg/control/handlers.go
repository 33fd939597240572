package control

import (
	"fmt"
	"net"

	"github.com/corvid-labs/ago/pkg/codec"
	"github.com/corvid-labs/ago/pkg/process"
	"github.com/corvid-labs/ago/pkg/types"
)

func handleCreate(s *Server, conn net.Conn, req *codec.Request) error {
	var args CreateArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	id, dir, _, err := s.materialize(args.TemplateName, args.CustomName, "")
	if err != nil {
		return respond(conn, nil, err)
	}
	return respond(conn, CreateResult{InstanceID: id, ConfigDir: dir}, nil)
}

func handleRun(s *Server, conn net.Conn, req *codec.Request) error {
	var args RunArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	id, dir, _, err := s.materialize(args.TemplateName, args.CustomName, args.InstanceID)
	if err != nil {
		return respond(conn, nil, err)
	}

	inst, err := s.manager.Spawn(process.SpawnRequest{
		InstanceID:   id,
		TemplateName: args.TemplateName,
		CustomName:   args.CustomName,
		ConfigDir:    dir,
	})
	if err != nil {
		return respond(conn, nil, err)
	}
	return respond(conn, inst, nil)
}

func handlePS(s *Server, conn net.Conn, req *codec.Request) error {
	return respond(conn, PSResult{Instances: s.manager.ListInstances()}, nil)
}

func handleInspect(s *Server, conn net.Conn, req *codec.Request) error {
	var args InspectArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	id, err := s.identity.ResolveAgent(args.Agent)
	if err != nil {
		return respond(conn, nil, err)
	}

	inst, ok := s.manager.Inspect(id)
	if !ok {
		return respond(conn, nil, types.NewError(types.KindNoSuchAgent, id, nil))
	}
	return respond(conn, inst, nil)
}

func handleSend(s *Server, conn net.Conn, req *codec.Request) error {
	var args SendArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	to, err := s.identity.ResolveAgent(args.To)
	if err != nil {
		return respond(conn, nil, err)
	}

	from := args.From
	if from == "" {
		from = "client"
	}

	msgID, err := s.router.Send(from, to, args.Payload, args.Kind)
	if err != nil {
		return respond(conn, nil, err)
	}
	return respond(conn, SendResult{MessageID: msgID}, nil)
}

func handleStop(s *Server, conn net.Conn, req *codec.Request) error {
	var args StopArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	if args.All {
		s.manager.StopAll()
		return respond(conn, nil, nil)
	}

	id, err := s.identity.ResolveAgent(args.Agent)
	if err != nil {
		return respond(conn, nil, err)
	}
	if err := s.manager.Stop(id); err != nil {
		return respond(conn, nil, err)
	}
	return respond(conn, nil, nil)
}

func handleTemplates(s *Server, conn net.Conn, req *codec.Request) error {
	list, err := s.templates.List()
	if err != nil {
		return respond(conn, nil, err)
	}
	return respond(conn, TemplatesResult{Templates: list}, nil)
}

func handleConfig(s *Server, conn net.Conn, req *codec.Request) error {
	var args ConfigArgs
	if err := decodeArgs(req, &args); err != nil {
		return respond(conn, nil, err)
	}

	switch args.Action {
	case "get":
		value, found := s.cfg.Get(args.Key)
		return respond(conn, ConfigResult{Value: value, Found: found}, nil)

	case "set":
		if err := s.cfg.Set(args.Key, args.Value); err != nil {
			return respond(conn, nil, err)
		}
		return respond(conn, nil, nil)

	case "show":
		snap := s.cfg.Snapshot()
		show := map[string]string{"default_model": snap.DefaultModel}
		for name, entry := range snap.Registries {
			show["registries."+name+".url"] = entry.URL
			show["registries."+name+".kind"] = string(entry.Kind)
		}
		for key, v := range snap.Extra {
			show[key] = fmt.Sprintf("%v", v)
		}
		return respond(conn, ConfigResult{Show: show}, nil)

	default:
		return respond(conn, nil, types.NewError(types.KindDecodeFailure, "unknown config action: "+args.Action, nil))
	}
}

func handleShutdown(s *Server, conn net.Conn, req *codec.Request) error {
	err := respond(conn, nil, nil)

	onShutdown := s.onShutdown
	if onShutdown == nil {
		onShutdown = s.Stop
	}
	go onShutdown()

	return err
}
