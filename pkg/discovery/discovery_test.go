package discovery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evansochadeka/BenFarm/pkg/discovery"
)

func TestKeyAndParse(t *testing.T) {
	inst := &discovery.ServiceInstance{Name: "benfarm-grpc", Host: "10.0.0.7", Port: 50051}
	assert.Equal(t, "/benfarm/services/benfarm-grpc/10.0.0.7:50051", discovery.Key("/benfarm/services/", inst))

	got, err := discovery.ParseInstance("benfarm-grpc", inst.Addr())
	require.NoError(t, err)
	assert.Equal(t, inst, got)

	_, err = discovery.ParseInstance("benfarm-grpc", "10.0.0.7")
	assert.Error(t, err)
	_, err = discovery.ParseInstance("benfarm-grpc", "10.0.0.7:http")
	assert.Error(t, err)
}
