//go:build linux && mqueue

package transport

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rwth-ice/vpti/internal/wire"
)

// requireMQSupport skips the test if POSIX message queues are not mounted
// (mqueue is a kernel feature, not always available in CI containers),
// mirroring the teacher's requireRoot/requireUblkModule skip guards.
func requireMQSupport(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/mqueue"); os.IsNotExist(err) {
		t.Skip("posix mqueue filesystem not mounted")
	}
}

func TestMQStartSendReceiveRoundTrip(t *testing.T) {
	requireMQSupport(t)

	name := fmt.Sprintf("/vpti-test-%d", os.Getpid())
	reqName := name + "-req"
	resName := name + "-res"

	server := &MQ{RequestName: reqName, ResponseName: resName, ReceiverID: 1}
	defer func() {
		server.Close()
		MQUnlink(reqName)
		MQUnlink(resName)
	}()

	require.NoError(t, server.Start())
	require.True(t, server.IsStarted())

	client := &MQ{RequestName: reqName, ResponseName: resName, ReceiverID: 1}
	require.NoError(t, client.Start())
	defer client.Close()

	req := wire.Request{Command: wire.GetCPUPC, Data: nil}
	require.NoError(t, func() error {
		buf := make([]byte, mqIDSize+1)
		wire.PutUint32(buf, 0, client.ReceiverID)
		buf[mqIDSize] = byte(req.Command)
		return MQTimedSend(client.reqFD, buf, 0)
	}())

	got, err := server.ReceiveRequest()
	require.NoError(t, err)
	require.Equal(t, wire.GetCPUPC, got.Command)

	require.NoError(t, server.SendResponse(wire.Response{Status: wire.StatusOK, Data: []byte{1, 2, 3, 4}}))
}
