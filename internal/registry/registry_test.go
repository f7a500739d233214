package registry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pv-groupings/internal/relation"
)

const repdExport = `Renewable Energy Planning Database
Quarterly extract
Ref ID,Site Name,Technology Type,Country,Operational,Installed Capacity (MWelec),X-coordinate,Y-coordinate,Mounting Type for Solar
1001,Moor Farm,Solar Photovoltaics,England,14/07/2015,"4,800.0",431234,387654,Ground
1002,Belfast Roof,Solar Photovoltaics,Northern Ireland,01/01/2016,1.2,,,Roof
1003,Hill Wind,Wind Onshore,Scotland,,12,,,
1004.0,Barn Roof,Solar Photovoltaics,Wales,,0.25,,,Roof
`

func TestLoad(t *testing.T) {
	installations, err := Load(strings.NewReader(repdExport), Options{HeaderRow: 2})
	require.NoError(t, err)
	require.Len(t, installations, 2)

	farm := installations[0]
	assert.Equal(t, relation.ObjectID("1001"), farm.ID)
	require.NotNil(t, farm.Capacity)
	assert.Equal(t, 4800.0, *farm.Capacity)
	require.NotNil(t, farm.InstallDate)
	assert.Equal(t, time.Date(2015, 7, 14, 0, 0, 0, 0, time.UTC), *farm.InstallDate)
	assert.True(t, farm.Operational)
	assert.True(t, farm.GroundMount)
	assert.Equal(t, "repd", farm.Source)

	barn := installations[1]
	assert.Equal(t, relation.ObjectID("1004"), barn.ID)
	assert.False(t, barn.Operational)
	assert.Nil(t, barn.Eastings)

	index := Index(installations)
	assert.Contains(t, index, relation.ObjectID("1004"))
}

func TestLoadMissingColumns(t *testing.T) {
	_, err := Load(strings.NewReader("Ref ID,Site Name\n1,x\n"), Options{})
	assert.True(t, errors.Is(err, relation.ErrMissingColumn))
}
