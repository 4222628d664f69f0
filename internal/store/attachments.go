package store

import (
	"bytes"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/vas-solutus/arcad/internal/types"
)

func attachmentKey(networkID, containerID string) string {
	return networkID + "/" + containerID
}

func (s *Store) GetAttachment(networkID, containerID string) (*types.Attachment, error) {
	return getSimpleGob[*types.Attachment](s, bktAttachments, attachmentKey(networkID, containerID))
}

func (s *Store) DeleteAttachment(networkID, containerID string) error {
	return deleteSimple(s, bktAttachments, attachmentKey(networkID, containerID))
}

// ListAttachmentsForNetwork returns every attachment row whose key is
// prefixed by networkID, i.e. every container currently joined to it.
func (s *Store) ListAttachmentsForNetwork(networkID string) ([]*types.Attachment, error) {
	prefix := []byte(networkID + "/")
	var out []*types.Attachment
	err := s.db.View(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bktAttachments))
		if bkt == nil {
			return bbolt.ErrBucketNotFound
		}
		c := bkt.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var a types.Attachment
			if err := gobDecode(v, &a); err != nil {
				return err
			}
			out = append(out, &a)
		}
		return nil
	})
	return out, err
}

// ListAttachmentsForContainer scans all attachment rows for a given
// container ID. There's no secondary index for this direction since a
// container is rarely attached to more than a handful of networks.
func (s *Store) ListAttachmentsForContainer(containerID string) ([]*types.Attachment, error) {
	suffix := []byte("/" + containerID)
	var out []*types.Attachment
	err := forEachGob(s, bktAttachments, func(key string, a *types.Attachment) error {
		if bytes.HasSuffix([]byte(key), suffix) {
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

// AllocateAttachment performs the IPAM allocation and the attachment
// write as a single bbolt transaction: pickIP is called with the set of
// addresses already in use on the network, and must return the address
// to assign. Running both steps in one Update transaction is what makes
// concurrent attach calls on the same network race-free without a
// separate allocator lock, grounded on the teacher's database.go
// single-transaction read-then-write idiom.
func (s *Store) AllocateAttachment(networkID string, pickIP func(used map[string]bool) (string, error), build func(ip string) *types.Attachment) (*types.Attachment, error) {
	var result *types.Attachment
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bktAttachments))
		if bkt == nil {
			return bbolt.ErrBucketNotFound
		}

		used := make(map[string]bool)
		prefix := []byte(networkID + "/")
		c := bkt.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var a types.Attachment
			if err := gobDecode(v, &a); err != nil {
				return err
			}
			used[a.IPv4Address] = true
		}

		ip, err := pickIP(used)
		if err != nil {
			return err
		}

		a := build(ip)
		data, err := gobEncode(a)
		if err != nil {
			return err
		}
		if err := bkt.Put([]byte(attachmentKey(networkID, a.ContainerID)), data); err != nil {
			return err
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: allocate attachment on network %s: %w", networkID, err)
	}
	return result, nil
}

func (s *Store) SetAttachment(a *types.Attachment) error {
	return setSimpleGob(s, bktAttachments, attachmentKey(a.NetworkID, a.ContainerID), a)
}
