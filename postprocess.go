package orange

// runSerializePostProcess runs the two post-processing passes described in
// the data model, after the main recursive walk has archived every value
// once: the slice pass turns an array that shares backing storage with
// another archived array into a slice annotation, and the pointer pass links a
// pointer to the position its target was actually archived under, which is
// usually the pointer's own inline child but can differ when a pointer
// targets storage also reached by another path (an embedded field, for
// instance).
func (s *Serializer) runSerializePostProcess() {
	slices := 0
	for _, id := range s.tr.arrayRecordIDs {
		rec := s.tr.arrayRecords[id]
		parentID, found := s.tr.findSliceParent(id, rec)
		if !found {
			s.archive.PostProcessArray(id)
			continue
		}
		parent := s.tr.arrayRecords[parentID]
		offset := int((rec.Base - parent.Base) / rec.ElemSize)
		s.archive.ArchiveSlice(Slice{ParentID: parentID, Offset: offset, Length: rec.Len}, id)
		slices++
	}

	pointers := 0
	for _, id := range s.tr.pointerIDs {
		pointee := s.tr.serializedPointerTarget[id]
		vt, ok := s.tr.lookupValueTarget(pointee)
		if ok && vt.id != id {
			s.archive.ArchivePointerToValue(vt.id, vt.key, id)
			pointers++
			continue
		}
		s.archive.PostProcessPointer(id)
	}

	emitPostProcess("serialize", slices, pointers)
}

// runDeserializePostProcess resolves every deferred slice slot left by the
// main reconstruction pass, now that every value in the document has been
// visited at least once. Slice slots are retried in rounds since a slice's
// parent can itself be a slice awaiting its own parent. Pointer slots are
// resolved during the main pass, as soon as their target is recorded; any
// pointer slot still pending here names a forward reference whose target
// never appeared, and is reported as a malformed archive.
func (s *Serializer) runDeserializePostProcess() {
	slices := 0
	for round := 0; round < len(s.tr.deserializedSliceSlot)+1; round++ {
		progressed := false
		for id, slot := range s.tr.deserializedSliceSlot {
			parent, ok := s.tr.lookupDeserializedValue(slot.parentID)
			if !ok {
				continue
			}
			if err := slot.set(parent); err != nil {
				s.fail(err)
			}
			delete(s.tr.deserializedSliceSlot, id)
			progressed = true
			slices++
		}
		if !progressed {
			break
		}
	}
	for id := range s.tr.deserializedSliceSlot {
		s.fail(newSerializationError(ErrMalformedArchive, "", "", id, "slice parent array was never reconstructed"))
	}

	pointers := len(s.tr.deserializedPointerSlot)
	for id := range s.tr.deserializedPointerSlot {
		s.fail(newSerializationError(ErrMalformedArchive, "", "", id, "pointer target was never reconstructed"))
	}

	emitPostProcess("deserialize", slices, pointers)
}
