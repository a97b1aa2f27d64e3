// Tempo serves a cached filesystem over the Redis protocol; the following module implements that
// port. Reads map onto cached operations (GET -> cat, EXISTS -> exists, KEYS -> list, STAT -> stat)
// and FLUSHCACHE exposes cache invalidation, so any Redis client doubles as a debugging console for
// the cache layer.

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nobletooth/tempo/pkg/fs"
	"github.com/tidwall/redcon"
)

var address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool     // Closes the connection if true.
	writeNil        bool     // Writes a nil value if true.
	err             *string  // Error to return if set.
	writeInt        *int     // Writes an integer value if set.
	writeBulk       []byte   // Writes a bulk string if set.
	writeArray      []string // Writes an array of bulk strings if set.
	writeString     string   // Writes a simple string otherwise.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisNil() redisOutput {
	return redisOutput{writeNil: true}
}

func writeRedisInt(i int) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisBulk(b []byte) redisOutput {
	return redisOutput{writeBulk: b}
}

func writeRedisArray(values []string) redisOutput {
	return redisOutput{writeArray: values}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

type redisHandler struct { // Implements the command surface of the port.
	cfs *fs.CachedFS
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(cfs *fs.CachedFS) (*redisHandler, error) {
	if cfs == nil {
		return nil, errors.New("expected a non-nil cached filesystem")
	}
	return &redisHandler{cfs: cfs}, nil
}

func (rh *redisHandler) handle(ctx context.Context, cmd redisCommand) redisOutput {
	switch cmd.command {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection("OK")
	case "GET":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'GET' command"))
		}
		if data, err := rh.cfs.Cat(ctx, cmd.args[0]); errors.Is(err, fs.ErrNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		} else {
			return writeRedisBulk(data)
		}
	case "EXISTS":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'EXISTS' command"))
		}
		exists, err := rh.cfs.Exists(ctx, cmd.args[0])
		if err != nil {
			return writeRedisError(err)
		}
		if exists {
			return writeRedisInt(1)
		}
		return writeRedisInt(0)
	case "KEYS":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'KEYS' command"))
		}
		if children, err := rh.cfs.List(ctx, cmd.args[0]); errors.Is(err, fs.ErrNotFound) {
			return writeRedisArray(nil)
		} else if err != nil {
			return writeRedisError(err)
		} else {
			return writeRedisArray(children)
		}
	case "STAT":
		if len(cmd.args) != 1 {
			return writeRedisError(errors.New("wrong number of arguments for 'STAT' command"))
		}
		info, err := rh.cfs.Stat(ctx, cmd.args[0])
		if errors.Is(err, fs.ErrNotFound) {
			return writeRedisNil()
		} else if err != nil {
			return writeRedisError(err)
		}
		return writeRedisString(fmt.Sprintf("path=%s size=%d isDir=%t modTime=%s",
			info.Path, info.Size, info.IsDir, info.ModTime.UTC().Format("2006-01-02T15:04:05Z")))
	case "FLUSHCACHE":
		switch len(cmd.args) {
		case 0:
			rh.cfs.ClearAll()
		case 1:
			rh.cfs.ClearCache(cmd.args[0])
		default:
			return writeRedisError(errors.New("wrong number of arguments for 'FLUSHCACHE' command"))
		}
		return writeRedisString("OK")
	default:
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
}

// apply writes the handler output to the connection.
func apply(conn redcon.Conn, output redisOutput) {
	switch {
	case output.closeConnection:
		conn.WriteString(output.writeString)
		if err := conn.Close(); err != nil {
			slog.Error("failed to close connection", "error", err)
		}
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeNil:
		conn.WriteNull()
	case output.writeInt != nil:
		conn.WriteInt(*output.writeInt)
	case output.writeBulk != nil:
		conn.WriteBulk(output.writeBulk)
	case output.writeArray != nil:
		conn.WriteArray(len(output.writeArray))
		for _, value := range output.writeArray {
			conn.WriteBulkString(value)
		}
	default:
		conn.WriteString(output.writeString)
	}
}

// RunRedisServer starts a Redis protocol server over the provided cached filesystem.
func RunRedisServer(ctx context.Context, cfs *fs.CachedFS) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}

	redisHandler, err := newRedisHandler(cfs)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, *address,
		/*handler*/ func(conn redcon.Conn, cmd redcon.Command) {
			// Convert redcon.Command to redisCommand.
			command := redisCommand{command: strings.ToUpper(string(cmd.Args[0])), args: make([]string, len(cmd.Args)-1)}
			for i := 1; i < len(cmd.Args); i++ {
				command.args[i-1] = string(cmd.Args[i])
			}
			apply(conn, redisHandler.handle(ctx, command))
		},
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*close*/ func(conn redcon.Conn, err error) {
		})

	serverErrSignal := make(chan error, 1)
	go func() {
		if err := redisServer.ListenAndServe(); err != nil {
			serverErrSignal <- err
		}
		close(serverErrSignal)
	}()

	select {
	case <-ctx.Done():
		if err := redisServer.Close(); err != nil {
			return fmt.Errorf("failed to close tempo port: %w", err)
		}
	case err := <-serverErrSignal:
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}

// ListenAddress returns the configured listen address. Exposed for the binary's startup log.
func ListenAddress() string { return *address }
