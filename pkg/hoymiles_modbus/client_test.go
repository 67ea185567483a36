package hoymiles_modbus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetPowerLimitRegisterRange(t *testing.T) {

	require := require.New(t)

	// the 0.1W control register cannot encode limits above 6553W; the
	// reader must reject them instead of writing a wrapped-around value
	dtu := DTUIntModbusReader{}
	err := dtu.SetPowerLimit(MaxPowerLimitWatt+1, PowerLimitAbsoluteNonPersistent)
	require.Error(err)

	err = dtu.SetPowerLimit(20000, PowerLimitAbsoluteNonPersistent)
	require.Error(err)
}
